package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/domain/notification"
	"github.com/tixswap/tixswap/internal/domain/offer"
	"github.com/tixswap/tixswap/internal/domain/purchase"
	"github.com/tixswap/tixswap/internal/infrastructure/metrics"
)

// Config tunes the dispatcher.
type Config struct {
	RelistOnCancel      bool
	NotificationRetries int
	RetryDelay          time.Duration
}

// Dispatcher applies the best-effort side effects of committed transitions.
// Nothing it does is reported back to the caller; failures are logged and counted.
type Dispatcher struct {
	listings      listing.Repository
	notifications notification.Repository
	publisher     notification.Publisher
	cfg           Config
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// NewDispatcher creates a dispatcher. publisher and m may be nil.
func NewDispatcher(
	listings listing.Repository,
	notifications notification.Repository,
	publisher notification.Publisher,
	cfg Config,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Dispatcher {
	if cfg.NotificationRetries < 0 {
		cfg.NotificationRetries = 0
	}
	return &Dispatcher{
		listings:      listings,
		notifications: notifications,
		publisher:     publisher,
		cfg:           cfg,
		metrics:       m,
		logger:        logger.With().Str("service", "dispatch").Logger(),
	}
}

// OnTransition synchronizes the listing and notifies the counterparty.
func (d *Dispatcher) OnTransition(ctx context.Context, ev purchase.Event) {
	d.syncListing(ctx, ev)

	typ, msg := describe(ev)
	n := notification.NewNotification(ev.Recipient(), notification.SubjectPurchase, ev.Purchase.ID, typ, msg)
	d.deliver(ctx, n)
}

// OnProposalRejected tells a proposer their proposal lost.
func (d *Dispatcher) OnProposalRejected(ctx context.Context, o *offer.Offer, p *offer.Proposal) {
	msg := fmt.Sprintf("Your proposal for %q was not accepted.", o.Criteria.EventName)
	n := notification.NewNotification(p.ProposerID, notification.SubjectProposal, p.ID, notification.TypeProposalRejected, msg)
	d.deliver(ctx, n)
}

func (d *Dispatcher) syncListing(ctx context.Context, ev purchase.Event) {
	if ev.Purchase.ListingID == nil {
		return
	}
	listingID := *ev.Purchase.ListingID
	now := time.Now().UTC()

	var (
		changed bool
		err     error
		target  listing.Status
	)
	switch {
	case ev.IsCreation():
		target = listing.StatusProcessing
		changed, err = d.listings.CompareAndSetStatus(ctx, listingID, listing.StatusActive, target, now)
	case ev.To == purchase.StatusConfirmed:
		target = listing.StatusSold
		changed, err = d.listings.UpdateStatus(ctx, listingID, target, now)
	case ev.To == purchase.StatusCancelled && d.cfg.RelistOnCancel:
		target = listing.StatusActive
		changed, err = d.listings.CompareAndSetStatus(ctx, listingID, listing.StatusProcessing, target, now)
	default:
		return
	}

	log := d.logger.With().
		Str("purchase_id", ev.Purchase.ID.String()).
		Str("listing_id", listingID.String()).
		Str("listing_status", string(target)).
		Logger()
	if err != nil {
		d.metrics.TrackSideEffectFailure("listing_sync")
		log.Error().Err(err).Msg("failed to sync listing status")
		return
	}
	if !changed {
		log.Debug().Msg("listing status left unchanged")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *notification.Notification) {
	log := d.logger.With().
		Str("notification_id", n.ID.String()).
		Str("recipient_id", n.RecipientID.String()).
		Str("type", string(n.Type)).
		Logger()

	var err error
	for attempt := 0; attempt <= d.cfg.NotificationRetries; attempt++ {
		if attempt > 0 {
			if !wait(ctx, d.cfg.RetryDelay*time.Duration(attempt)) {
				break
			}
		}
		if err = d.notifications.Create(ctx, n); err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("failed to store notification")
	}
	if err != nil {
		d.metrics.TrackSideEffectFailure("notification")
		log.Error().Err(err).Msg("giving up on notification")
		return
	}
	d.metrics.TrackNotification(string(n.Type))

	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, n); err != nil {
		d.metrics.TrackSideEffectFailure("publish")
		log.Warn().Err(err).Msg("failed to publish notification")
	}
}

func wait(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func describe(ev purchase.Event) (notification.Type, string) {
	p := ev.Purchase
	switch ev.To {
	case purchase.StatusPendingPayment:
		if ev.Role == purchase.RoleSystem {
			return notification.TypeProposalAccepted,
				fmt.Sprintf("Your proposal for %q was accepted. Order %s is awaiting payment.", p.Title, p.OrderNumber)
		}
		return notification.TypePurchaseCreated,
			fmt.Sprintf("New order %s for %q is awaiting payment.", p.OrderNumber, p.Title)
	case purchase.StatusProcessing:
		return notification.TypePurchaseProcessing,
			fmt.Sprintf("The seller started processing order %s for %q.", p.OrderNumber, p.Title)
	case purchase.StatusCompleted:
		return notification.TypePurchaseCompleted,
			fmt.Sprintf("Tickets for order %s (%q) were handed over. Please confirm receipt.", p.OrderNumber, p.Title)
	case purchase.StatusConfirmed:
		return notification.TypePurchaseConfirmed,
			fmt.Sprintf("Order %s for %q is confirmed.", p.OrderNumber, p.Title)
	default:
		return notification.TypePurchaseCancelled,
			fmt.Sprintf("Order %s for %q was cancelled.", p.OrderNumber, p.Title)
	}
}
