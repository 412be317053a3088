package availability

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/domain/offer"
	"github.com/tixswap/tixswap/internal/domain/purchase"
)

// Gate decides whether a listing can be bought or an offer answered.
// It only reads; the storage constraints settle races between callers that both pass.
type Gate struct {
	listings  listing.Repository
	purchases purchase.Repository
	offers    offer.Repository
	logger    zerolog.Logger
}

// NewGate creates an availability gate.
func NewGate(listings listing.Repository, purchases purchase.Repository, offers offer.Repository, logger zerolog.Logger) *Gate {
	return &Gate{
		listings:  listings,
		purchases: purchases,
		offers:    offers,
		logger:    logger.With().Str("service", "availability").Logger(),
	}
}

// CanPurchase returns the listing when requesterID may start a purchase on it.
func (g *Gate) CanPurchase(ctx context.Context, listingID, requesterID uuid.UUID) (*listing.Listing, error) {
	l, err := g.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l == nil || l.IsDeleted() {
		return nil, listing.ErrNotFound
	}
	if l.SellerID == requesterID {
		return nil, listing.ErrSelfPurchase
	}
	if l.Status != listing.StatusActive {
		return nil, listing.ErrNotActive
	}
	active, err := g.purchases.FindActiveByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		g.logger.Debug().
			Str("listing_id", listingID.String()).
			Str("purchase_id", active.ID.String()).
			Msg("listing already has an active purchase")
		return nil, listing.ErrAlreadyInProgress
	}
	return l, nil
}

// CanPropose returns the offer when proposerID may submit a proposal on it.
func (g *Gate) CanPropose(ctx context.Context, offerID, proposerID uuid.UUID) (*offer.Offer, error) {
	o, err := g.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, offer.ErrOfferNotFound
	}
	if !o.IsOpen() {
		return nil, offer.ErrOfferClosed
	}
	if o.RequesterID == proposerID {
		return nil, offer.ErrSelfProposal
	}
	return o, nil
}
