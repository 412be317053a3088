package negotiation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tixswap/tixswap/internal/application/availability"
	appPurchase "github.com/tixswap/tixswap/internal/application/purchase"
	"github.com/tixswap/tixswap/internal/domain/offer"
	"github.com/tixswap/tixswap/internal/domain/purchase"
	"github.com/tixswap/tixswap/internal/domain/store"
	"github.com/tixswap/tixswap/internal/domain/validation"
	"github.com/tixswap/tixswap/internal/infrastructure/metrics"
)

// Notifier receives the side effects of an acceptance.
type Notifier interface {
	OnTransition(ctx context.Context, ev purchase.Event)
	OnProposalRejected(ctx context.Context, o *offer.Offer, p *offer.Proposal)
}

// PurchaseCreator creates the purchase for an accepted proposal inside the caller's transaction.
type PurchaseCreator interface {
	CreateNegotiated(ctx context.Context, in appPurchase.NegotiatedInput) (*purchase.Purchase, purchase.Event, error)
}

// Service runs offers and proposals.
type Service struct {
	txm       store.TxManager
	offers    offer.Repository
	gate      *availability.Gate
	purchases PurchaseCreator
	notifier  Notifier
	minPrice  decimal.Decimal
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a negotiation service. notifier and m may be nil.
func NewService(
	txm store.TxManager,
	offers offer.Repository,
	gate *availability.Gate,
	purchases PurchaseCreator,
	notifier Notifier,
	minPrice decimal.Decimal,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		txm:       txm,
		offers:    offers,
		gate:      gate,
		purchases: purchases,
		notifier:  notifier,
		minPrice:  minPrice,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("service", "negotiation").Logger(),
	}
}

// CreateOffer opens a ticket request.
func (s *Service) CreateOffer(ctx context.Context, requesterID uuid.UUID, criteria offer.Criteria) (*offer.Offer, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	o := offer.NewOffer(requesterID, criteria, s.now())
	if err := s.offers.CreateOffer(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info().Str("offer_id", o.ID.String()).Str("event", criteria.EventName).Msg("offer created")
	return o, nil
}

// SubmitProposal answers an open offer with a price.
func (s *Service) SubmitProposal(ctx context.Context, offerID, proposerID uuid.UUID, price decimal.Decimal, sectionInfo string) (*offer.Proposal, error) {
	if !price.IsPositive() {
		return nil, validation.New("price", "must be greater than zero")
	}
	if price.LessThan(s.minPrice) {
		return nil, validation.New("price", "must be at least "+s.minPrice.String())
	}

	if _, err := s.gate.CanPropose(ctx, offerID, proposerID); err != nil {
		return nil, err
	}

	// Recheck under the offer lock; an accept or close may have committed since the gate.
	var p *offer.Proposal
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.offers.GetOfferForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		if o == nil {
			return offer.ErrOfferNotFound
		}
		if !o.IsOpen() {
			return offer.ErrOfferClosed
		}
		existing, err := s.offers.FindProposal(ctx, o.ID, proposerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return offer.ErrDuplicateProposal
		}
		p = offer.NewProposal(o.ID, proposerID, price, sectionInfo, s.now())
		return s.offers.CreateProposal(ctx, p)
	})
	if err != nil {
		if errors.Is(err, offer.ErrDuplicateProposal) {
			s.metrics.TrackConflict("duplicate_proposal")
		}
		if errors.Is(err, offer.ErrOfferClosed) {
			s.metrics.TrackConflict("offer_closed")
		}
		return nil, err
	}
	s.logger.Info().
		Str("offer_id", p.OfferID.String()).
		Str("proposal_id", p.ID.String()).
		Str("price", price.String()).
		Msg("proposal submitted")
	return p, nil
}

// AcceptProposal accepts one proposal, rejects the rest, creates the purchase
// and closes the offer, all in one transaction.
func (s *Service) AcceptProposal(ctx context.Context, offerID, proposalID, userID uuid.UUID) (*purchase.Purchase, error) {
	var (
		o        *offer.Offer
		created  *purchase.Purchase
		ev       purchase.Event
		rejected []*offer.Proposal
	)
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.offers.GetOfferForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		if o == nil {
			return offer.ErrOfferNotFound
		}
		if o.RequesterID != userID {
			return offer.ErrNotAuthorized
		}
		p, err := s.offers.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if p == nil || p.OfferID != o.ID {
			return offer.ErrProposalNotFound
		}
		if !p.IsPending() {
			return offer.ErrAlreadyProcessed
		}
		if !o.IsOpen() {
			return offer.ErrOfferClosed
		}

		now := s.now()
		ok, err := s.offers.CompareAndSetProposalStatus(ctx, p.ID, offer.ProposalPending, offer.ProposalAccepted, now)
		if err != nil {
			return err
		}
		if !ok {
			return offer.ErrAlreadyProcessed
		}
		p.Status = offer.ProposalAccepted
		p.UpdatedAt = now

		if rejected, err = s.offers.RejectPendingProposals(ctx, o.ID, &p.ID, now); err != nil {
			return err
		}
		if created, ev, err = s.purchases.CreateNegotiated(ctx, appPurchase.NegotiatedInput{Offer: o, Proposal: p, AcceptedBy: userID}); err != nil {
			return err
		}
		if err := s.offers.SetOfferStatus(ctx, o.ID, offer.StatusClosed, now); err != nil {
			return err
		}
		o.Status = offer.StatusClosed
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, offer.ErrAlreadyProcessed) {
			s.metrics.TrackConflict("proposal_processed")
		}
		return nil, err
	}

	s.metrics.TrackTransition(string(ev.From), string(ev.To))
	s.logger.Info().
		Str("offer_id", offerID.String()).
		Str("proposal_id", proposalID.String()).
		Str("purchase_id", created.ID.String()).
		Str("order_number", created.OrderNumber).
		Int("rejected", len(rejected)).
		Msg("proposal accepted")

	if s.notifier != nil {
		nctx := context.WithoutCancel(ctx)
		s.notifier.OnTransition(nctx, ev)
		for _, r := range rejected {
			s.notifier.OnProposalRejected(nctx, o, r)
		}
	}
	return created, nil
}

// RejectProposal lets the requester decline one pending proposal.
func (s *Service) RejectProposal(ctx context.Context, offerID, proposalID, userID uuid.UUID) (*offer.Proposal, error) {
	var (
		o *offer.Offer
		p *offer.Proposal
	)
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.offers.GetOfferForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		if o == nil {
			return offer.ErrOfferNotFound
		}
		if o.RequesterID != userID {
			return offer.ErrNotAuthorized
		}
		p, err = s.offers.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if p == nil || p.OfferID != o.ID {
			return offer.ErrProposalNotFound
		}
		now := s.now()
		ok, err := s.offers.CompareAndSetProposalStatus(ctx, p.ID, offer.ProposalPending, offer.ProposalRejected, now)
		if err != nil {
			return err
		}
		if !ok {
			return offer.ErrAlreadyProcessed
		}
		p.Status = offer.ProposalRejected
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.OnProposalRejected(context.WithoutCancel(ctx), o, p)
	}
	return p, nil
}

// CloseOffer withdraws an offer and rejects its pending proposals.
// Closing an already closed offer succeeds.
func (s *Service) CloseOffer(ctx context.Context, offerID, userID uuid.UUID) (*offer.Offer, error) {
	var (
		o        *offer.Offer
		rejected []*offer.Proposal
	)
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.offers.GetOfferForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		if o == nil {
			return offer.ErrOfferNotFound
		}
		if o.RequesterID != userID {
			return offer.ErrNotAuthorized
		}
		if !o.IsOpen() {
			return nil
		}
		now := s.now()
		if rejected, err = s.offers.RejectPendingProposals(ctx, o.ID, nil, now); err != nil {
			return err
		}
		if err := s.offers.SetOfferStatus(ctx, o.ID, offer.StatusClosed, now); err != nil {
			return err
		}
		o.Status = offer.StatusClosed
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		nctx := context.WithoutCancel(ctx)
		for _, r := range rejected {
			s.notifier.OnProposalRejected(nctx, o, r)
		}
	}
	return o, nil
}

// GetOffer returns an offer.
func (s *Service) GetOffer(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	o, err := s.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, offer.ErrOfferNotFound
	}
	return o, nil
}

// ListOpenOffers lists offers still taking proposals, newest first.
func (s *Service) ListOpenOffers(ctx context.Context, limit, offset int) ([]*offer.Offer, error) {
	return s.offers.ListOpenOffers(ctx, limit, offset)
}

// ListProposals returns every proposal to the requester and only their own to anyone else.
func (s *Service) ListProposals(ctx context.Context, offerID, userID uuid.UUID) ([]*offer.Proposal, error) {
	o, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	all, err := s.offers.ListProposals(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if o.RequesterID == userID {
		return all, nil
	}
	own := []*offer.Proposal{}
	for _, p := range all {
		if p.ProposerID == userID {
			own = append(own, p)
		}
	}
	return own, nil
}
