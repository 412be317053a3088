package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tixswap/tixswap/internal/application/availability"
	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/domain/offer"
	"github.com/tixswap/tixswap/internal/domain/purchase"
	"github.com/tixswap/tixswap/internal/domain/store"
	"github.com/tixswap/tixswap/internal/domain/validation"
	"github.com/tixswap/tixswap/internal/infrastructure/metrics"
)

// maxOrderNumberRetries bounds regeneration after an order number collision.
const maxOrderNumberRetries = 3

// Notifier receives committed transitions.
type Notifier interface {
	OnTransition(ctx context.Context, ev purchase.Event)
}

type orderNumbers interface {
	Next() string
}

// Service runs the purchase lifecycle.
type Service struct {
	txm       store.TxManager
	purchases purchase.Repository
	listings  listing.Repository
	offers    offer.Repository
	gate      *availability.Gate
	fees      *FeeCalculator
	orders    orderNumbers
	notifier  Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a purchase service. notifier and m may be nil.
func NewService(
	txm store.TxManager,
	purchases purchase.Repository,
	listings listing.Repository,
	offers offer.Repository,
	gate *availability.Gate,
	fees *FeeCalculator,
	notifier Notifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		txm:       txm,
		purchases: purchases,
		listings:  listings,
		offers:    offers,
		gate:      gate,
		fees:      fees,
		orders:    purchase.NewOrderNumberGenerator(),
		notifier:  notifier,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("service", "purchase").Logger(),
	}
}

// DirectInput starts a purchase of a listing.
type DirectInput struct {
	ListingID uuid.UUID
	BuyerID   uuid.UUID
	Quantity  int
}

// CreateDirect buys a listing outright.
func (s *Service) CreateDirect(ctx context.Context, in DirectInput) (*purchase.Purchase, error) {
	if in.Quantity < 1 {
		return nil, validation.New("quantity", "must be at least 1")
	}

	var created *purchase.Purchase
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		l, err := s.gate.CanPurchase(ctx, in.ListingID, in.BuyerID)
		if err != nil {
			return err
		}
		if in.Quantity > l.Quantity {
			return validation.New("quantity", fmt.Sprintf("must not exceed %d", l.Quantity))
		}

		total := l.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		fee, err := s.fees.Fee(total, l.Price, in.Quantity)
		if err != nil {
			return err
		}
		now := s.now()
		listingID := l.ID
		p := &purchase.Purchase{
			ID:         uuid.New(),
			ListingID:  &listingID,
			BuyerID:    in.BuyerID,
			SellerID:   l.SellerID,
			Title:      l.Title,
			Quantity:   in.Quantity,
			UnitPrice:  l.Price,
			TotalPrice: total,
			FeeAmount:  fee,
			Status:     purchase.StatusPendingPayment,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.insert(ctx, p, in.BuyerID, purchase.RoleBuyer); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		if errors.Is(err, listing.ErrAlreadyInProgress) {
			s.metrics.TrackConflict("listing_in_progress")
		}
		return nil, err
	}

	s.metrics.TrackTransition(string(purchase.StatusNone), string(purchase.StatusPendingPayment))
	s.logger.Info().
		Str("purchase_id", created.ID.String()).
		Str("order_number", created.OrderNumber).
		Str("listing_id", in.ListingID.String()).
		Msg("purchase created")
	s.notify(ctx, purchase.Event{
		Purchase: created.Snapshot(),
		From:     purchase.StatusNone,
		To:       purchase.StatusPendingPayment,
		ActorID:  in.BuyerID,
		Role:     purchase.RoleBuyer,
	})
	return created, nil
}

// NegotiatedInput creates the purchase for an accepted proposal.
type NegotiatedInput struct {
	Offer      *offer.Offer
	Proposal   *offer.Proposal
	AcceptedBy uuid.UUID
}

// CreateNegotiated inserts the purchase for an accepted proposal. It joins the
// caller's transaction and does not notify; the caller dispatches the returned
// event after commit.
func (s *Service) CreateNegotiated(ctx context.Context, in NegotiatedInput) (*purchase.Purchase, purchase.Event, error) {
	qty := in.Offer.Criteria.Quantity
	if qty < 1 {
		qty = 1
	}
	total := in.Proposal.Price
	unit := total.Div(decimal.NewFromInt(int64(qty))).Round(2)
	fee, err := s.fees.Fee(total, unit, qty)
	if err != nil {
		return nil, purchase.Event{}, err
	}

	now := s.now()
	offerID := in.Offer.ID
	proposalID := in.Proposal.ID
	p := &purchase.Purchase{
		ID:         uuid.New(),
		OfferID:    &offerID,
		ProposalID: &proposalID,
		BuyerID:    in.Offer.RequesterID,
		SellerID:   in.Proposal.ProposerID,
		Title:      in.Offer.Criteria.EventName,
		Quantity:   qty,
		UnitPrice:  unit,
		TotalPrice: total,
		FeeAmount:  fee,
		Status:     purchase.StatusPendingPayment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		return s.insert(ctx, p, in.AcceptedBy, purchase.RoleSystem)
	})
	if err != nil {
		return nil, purchase.Event{}, err
	}
	return p, purchase.Event{
		Purchase: p.Snapshot(),
		From:     purchase.StatusNone,
		To:       purchase.StatusPendingPayment,
		ActorID:  in.AcceptedBy,
		Role:     purchase.RoleSystem,
	}, nil
}

// insert writes the purchase and its creation record. Both must land together:
// a failed history write rolls the purchase row back with it.
func (s *Service) insert(ctx context.Context, p *purchase.Purchase, actorID uuid.UUID, role purchase.Role) error {
	if err := purchase.Authorize(purchase.StatusNone, purchase.StatusPendingPayment, role); err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		p.OrderNumber = s.orders.Next()
		err := s.txm.WithTx(ctx, func(ctx context.Context) error {
			return s.purchases.Create(ctx, p)
		})
		if errors.Is(err, purchase.ErrDuplicateOrderNumber) && attempt < maxOrderNumberRetries {
			s.logger.Warn().Str("order_number", p.OrderNumber).Int("attempt", attempt+1).Msg("order number collision, regenerating")
			continue
		}
		if err != nil {
			return err
		}
		break
	}
	rec := purchase.NewTransitionRecord(p.ID, purchase.StatusNone, purchase.StatusPendingPayment, actorID, role, p.CreatedAt)
	if err := s.purchases.RecordTransition(ctx, rec); err != nil {
		return fmt.Errorf("failed to record purchase creation: %w", err)
	}
	return nil
}

// Transition moves a purchase to target on behalf of actorID.
func (s *Service) Transition(ctx context.Context, purchaseID, actorID uuid.UUID, target purchase.Status) (*purchase.Purchase, error) {
	var (
		updated *purchase.Purchase
		ev      purchase.Event
	)
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.purchases.GetByID(ctx, purchaseID)
		if err != nil {
			return err
		}
		if p == nil {
			return purchase.ErrNotFound
		}
		role, ok := p.RoleOf(actorID)
		if !ok {
			return purchase.ErrNotParticipant
		}
		from := p.Status
		if err := purchase.Authorize(from, target, role); err != nil {
			return err
		}
		if from == purchase.StatusPendingPayment && target == purchase.StatusProcessing {
			if err := s.checkSource(ctx, p); err != nil {
				return err
			}
		}

		now := s.now()
		changed, err := s.purchases.CompareAndSetStatus(ctx, p.ID, from, target, now)
		if err != nil {
			return err
		}
		if !changed {
			return &purchase.TransitionError{From: from, To: target, Role: role}
		}
		if target == purchase.StatusConfirmed && p.ListingID != nil {
			if _, err := s.listings.UpdateStatus(ctx, *p.ListingID, listing.StatusSold, now); err != nil {
				return fmt.Errorf("failed to mark listing sold: %w", err)
			}
		}
		if err := s.purchases.RecordTransition(ctx, purchase.NewTransitionRecord(p.ID, from, target, actorID, role, now)); err != nil {
			return fmt.Errorf("failed to record transition: %w", err)
		}

		p.Status = target
		p.UpdatedAt = now
		updated = p
		ev = purchase.Event{Purchase: p.Snapshot(), From: from, To: target, ActorID: actorID, Role: role}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TrackTransition(string(ev.From), string(ev.To))
	s.logger.Info().
		Str("purchase_id", updated.ID.String()).
		Str("from", string(ev.From)).
		Str("to", string(ev.To)).
		Str("role", string(ev.Role)).
		Msg("purchase transitioned")
	s.notify(ctx, ev)
	return updated, nil
}

// checkSource verifies the listing or offer behind a purchase is still valid.
func (s *Service) checkSource(ctx context.Context, p *purchase.Purchase) error {
	if p.ListingID != nil {
		l, err := s.listings.GetByID(ctx, *p.ListingID)
		if err != nil {
			return err
		}
		if l == nil || l.IsDeleted() || l.Status == listing.StatusSold {
			return purchase.ErrSourceUnavailable
		}
	}
	if p.OfferID != nil {
		o, err := s.offers.GetOffer(ctx, *p.OfferID)
		if err != nil {
			return err
		}
		if o == nil {
			return purchase.ErrSourceUnavailable
		}
	}
	return nil
}

// Get returns a purchase visible to userID.
func (s *Service) Get(ctx context.Context, purchaseID, userID uuid.UUID) (*purchase.Purchase, error) {
	p, err := s.purchases.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, purchase.ErrNotFound
	}
	if _, ok := p.RoleOf(userID); !ok {
		return nil, purchase.ErrNotParticipant
	}
	return p, nil
}

// ListForUser lists purchases where userID is buyer or seller.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, role *purchase.Role, status *purchase.Status, limit, offset int) ([]*purchase.Purchase, error) {
	if role != nil && *role != purchase.RoleBuyer && *role != purchase.RoleSeller {
		return nil, validation.New("role", "must be BUYER or SELLER")
	}
	return s.purchases.List(ctx, purchase.Filter{UserID: userID, Role: role, Status: status}, limit, offset)
}

// History returns the transition records of a purchase visible to userID.
func (s *Service) History(ctx context.Context, purchaseID, userID uuid.UUID) ([]*purchase.TransitionRecord, error) {
	if _, err := s.Get(ctx, purchaseID, userID); err != nil {
		return nil, err
	}
	return s.purchases.ListTransitions(ctx, purchaseID)
}

func (s *Service) notify(ctx context.Context, ev purchase.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.OnTransition(context.WithoutCancel(ctx), ev)
}
