package offer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for offers and their proposals.
// Getters return nil, nil when the row does not exist.
type Repository interface {
	CreateOffer(ctx context.Context, o *Offer) error
	GetOffer(ctx context.Context, offerID uuid.UUID) (*Offer, error)
	// GetOfferForUpdate reads the offer and locks it until the surrounding transaction ends.
	GetOfferForUpdate(ctx context.Context, offerID uuid.UUID) (*Offer, error)
	ListOpenOffers(ctx context.Context, limit, offset int) ([]*Offer, error)
	SetOfferStatus(ctx context.Context, offerID uuid.UUID, status Status, at time.Time) error

	// CreateProposal returns ErrDuplicateProposal when the proposer already proposed on the offer.
	CreateProposal(ctx context.Context, p *Proposal) error
	GetProposal(ctx context.Context, proposalID uuid.UUID) (*Proposal, error)
	FindProposal(ctx context.Context, offerID, proposerID uuid.UUID) (*Proposal, error)
	ListProposals(ctx context.Context, offerID uuid.UUID) ([]*Proposal, error)
	// CompareAndSetProposalStatus updates a proposal only if its status equals from.
	// A second ACCEPTED proposal on the same offer yields ErrAlreadyProcessed.
	CompareAndSetProposalStatus(ctx context.Context, proposalID uuid.UUID, from, to ProposalStatus, at time.Time) (bool, error)
	// RejectPendingProposals rejects every pending proposal of the offer except keep,
	// and returns the rejected proposals.
	RejectPendingProposals(ctx context.Context, offerID uuid.UUID, keep *uuid.UUID, at time.Time) ([]*Proposal, error)
}
