package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tixswap/tixswap/internal/domain/listing"
)

// ListingRepository implements listing.Repository.
type ListingRepository struct {
	s *Store
}

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	defer r.s.lock(ctx)()
	r.s.state.listings[l.ID] = *l
	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("listing.GetByID"); err != nil {
		return nil, err
	}
	l, ok := r.s.state.listings[listingID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *ListingRepository) UpdateStatus(ctx context.Context, listingID uuid.UUID, status listing.Status, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("listing.UpdateStatus"); err != nil {
		return false, err
	}
	l, ok := r.s.state.listings[listingID]
	if !ok {
		return false, nil
	}
	l.Status = status
	l.UpdatedAt = at
	r.s.state.listings[listingID] = l
	return true, nil
}

func (r *ListingRepository) CompareAndSetStatus(ctx context.Context, listingID uuid.UUID, from, to listing.Status, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("listing.CompareAndSetStatus"); err != nil {
		return false, err
	}
	l, ok := r.s.state.listings[listingID]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	l.UpdatedAt = at
	r.s.state.listings[listingID] = l
	return true, nil
}
