package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tixswap/tixswap/internal/domain/offer"
)

// OfferRepository implements offer.Repository.
type OfferRepository struct {
	s *Store
}

func (r *OfferRepository) CreateOffer(ctx context.Context, o *offer.Offer) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("offer.CreateOffer"); err != nil {
		return err
	}
	r.s.state.offers[o.ID] = *o
	return nil
}

func (r *OfferRepository) GetOffer(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	defer r.s.lock(ctx)()
	o, ok := r.s.state.offers[offerID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

// GetOfferForUpdate relies on WithTx holding the store lock for the whole transaction.
func (r *OfferRepository) GetOfferForUpdate(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	return r.GetOffer(ctx, offerID)
}

func (r *OfferRepository) ListOpenOffers(ctx context.Context, limit, offset int) ([]*offer.Offer, error) {
	defer r.s.lock(ctx)()
	var out []*offer.Offer
	for _, o := range r.s.state.offers {
		if o.Status != offer.StatusOpen {
			continue
		}
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *OfferRepository) SetOfferStatus(ctx context.Context, offerID uuid.UUID, status offer.Status, at time.Time) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("offer.SetOfferStatus"); err != nil {
		return err
	}
	o, ok := r.s.state.offers[offerID]
	if !ok {
		return offer.ErrOfferNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	r.s.state.offers[offerID] = o
	return nil
}

func (r *OfferRepository) CreateProposal(ctx context.Context, p *offer.Proposal) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("offer.CreateProposal"); err != nil {
		return err
	}
	for _, existing := range r.s.state.proposals {
		if existing.OfferID == p.OfferID && existing.ProposerID == p.ProposerID {
			return offer.ErrDuplicateProposal
		}
	}
	r.s.state.proposals[p.ID] = *p
	return nil
}

func (r *OfferRepository) GetProposal(ctx context.Context, proposalID uuid.UUID) (*offer.Proposal, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.state.proposals[proposalID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *OfferRepository) FindProposal(ctx context.Context, offerID, proposerID uuid.UUID) (*offer.Proposal, error) {
	defer r.s.lock(ctx)()
	for _, p := range r.s.state.proposals {
		if p.OfferID == offerID && p.ProposerID == proposerID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *OfferRepository) ListProposals(ctx context.Context, offerID uuid.UUID) ([]*offer.Proposal, error) {
	defer r.s.lock(ctx)()
	out := []*offer.Proposal{}
	for _, p := range r.s.state.proposals {
		if p.OfferID != offerID {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *OfferRepository) CompareAndSetProposalStatus(ctx context.Context, proposalID uuid.UUID, from, to offer.ProposalStatus, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("offer.CompareAndSetProposalStatus"); err != nil {
		return false, err
	}
	p, ok := r.s.state.proposals[proposalID]
	if !ok || p.Status != from {
		return false, nil
	}
	if to == offer.ProposalAccepted {
		for id, other := range r.s.state.proposals {
			if id != proposalID && other.OfferID == p.OfferID && other.Status == offer.ProposalAccepted {
				return false, offer.ErrAlreadyProcessed
			}
		}
	}
	p.Status = to
	p.UpdatedAt = at
	r.s.state.proposals[proposalID] = p
	return true, nil
}

func (r *OfferRepository) RejectPendingProposals(ctx context.Context, offerID uuid.UUID, keep *uuid.UUID, at time.Time) ([]*offer.Proposal, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("offer.RejectPendingProposals"); err != nil {
		return nil, err
	}
	var rejected []*offer.Proposal
	for id, p := range r.s.state.proposals {
		if p.OfferID != offerID || p.Status != offer.ProposalPending {
			continue
		}
		if keep != nil && id == *keep {
			continue
		}
		p.Status = offer.ProposalRejected
		p.UpdatedAt = at
		r.s.state.proposals[id] = p
		p := p
		rejected = append(rejected, &p)
	}
	sort.Slice(rejected, func(i, j int) bool { return rejected[i].CreatedAt.Before(rejected[j].CreatedAt) })
	return rejected, nil
}
