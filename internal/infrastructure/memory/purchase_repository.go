package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/domain/purchase"
)

// PurchaseRepository implements purchase.Repository.
type PurchaseRepository struct {
	s *Store
}

func (r *PurchaseRepository) Create(ctx context.Context, p *purchase.Purchase) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("purchase.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.state.purchases {
		if existing.OrderNumber == p.OrderNumber {
			return purchase.ErrDuplicateOrderNumber
		}
		if p.ListingID != nil && existing.ListingID != nil &&
			*existing.ListingID == *p.ListingID && existing.Status.IsActive() {
			return listing.ErrAlreadyInProgress
		}
	}
	r.s.state.purchases[p.ID] = *p
	return nil
}

func (r *PurchaseRepository) GetByID(ctx context.Context, purchaseID uuid.UUID) (*purchase.Purchase, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("purchase.GetByID"); err != nil {
		return nil, err
	}
	p, ok := r.s.state.purchases[purchaseID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PurchaseRepository) FindActiveByListing(ctx context.Context, listingID uuid.UUID) (*purchase.Purchase, error) {
	defer r.s.lock(ctx)()
	for _, p := range r.s.state.purchases {
		if p.ListingID != nil && *p.ListingID == listingID && p.Status.IsActive() {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *PurchaseRepository) List(ctx context.Context, filter purchase.Filter, limit, offset int) ([]*purchase.Purchase, error) {
	defer r.s.lock(ctx)()
	var out []*purchase.Purchase
	for _, p := range r.s.state.purchases {
		role, ok := p.RoleOf(filter.UserID)
		if !ok {
			continue
		}
		if filter.Role != nil && *filter.Role != role {
			continue
		}
		if filter.Status != nil && *filter.Status != p.Status {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *PurchaseRepository) CompareAndSetStatus(ctx context.Context, purchaseID uuid.UUID, from, to purchase.Status, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("purchase.CompareAndSetStatus"); err != nil {
		return false, err
	}
	p, ok := r.s.state.purchases[purchaseID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = at
	r.s.state.purchases[purchaseID] = p
	return true, nil
}

func (r *PurchaseRepository) RecordTransition(ctx context.Context, rec *purchase.TransitionRecord) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("purchase.RecordTransition"); err != nil {
		return err
	}
	r.s.state.transitions = append(r.s.state.transitions, *rec)
	return nil
}

func (r *PurchaseRepository) ListTransitions(ctx context.Context, purchaseID uuid.UUID) ([]*purchase.TransitionRecord, error) {
	defer r.s.lock(ctx)()
	out := []*purchase.TransitionRecord{}
	for _, rec := range r.s.state.transitions {
		if rec.PurchaseID != purchaseID {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	return out, nil
}
