package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/tixswap/tixswap/internal/domain/listing"
	listingMocks "github.com/tixswap/tixswap/internal/domain/listing/mocks"
	"github.com/tixswap/tixswap/internal/domain/notification"
	notificationMocks "github.com/tixswap/tixswap/internal/domain/notification/mocks"
	"github.com/tixswap/tixswap/internal/domain/offer"
	"github.com/tixswap/tixswap/internal/domain/purchase"
	"github.com/tixswap/tixswap/internal/infrastructure/metrics"
)

type fixture struct {
	listings      *listingMocks.MockRepository
	notifications *notificationMocks.MockRepository
	publisher     *notificationMocks.MockPublisher
	metrics       *metrics.Metrics
	dispatcher    *Dispatcher
}

func newFixture(t *testing.T, cfg Config) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		listings:      listingMocks.NewMockRepository(ctrl),
		notifications: notificationMocks.NewMockRepository(ctrl),
		publisher:     notificationMocks.NewMockPublisher(ctrl),
		metrics:       metrics.New(),
	}
	f.dispatcher = NewDispatcher(f.listings, f.notifications, f.publisher, cfg, f.metrics, zerolog.Nop())
	return f
}

func directPurchase(status purchase.Status) purchase.Purchase {
	listingID := uuid.New()
	return purchase.Purchase{
		ID:          uuid.New(),
		OrderNumber: "ORDER-000000000001-00000001",
		ListingID:   &listingID,
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		Title:       "Concert A",
		Quantity:    1,
		TotalPrice:  decimal.NewFromInt(100),
		Status:      status,
	}
}

func TestDispatcher_OnTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("creation marks listing processing and notifies seller", func(t *testing.T) {
		f := newFixture(t, Config{RelistOnCancel: true})
		p := directPurchase(purchase.StatusPendingPayment)

		f.listings.EXPECT().
			CompareAndSetStatus(ctx, *p.ListingID, listing.StatusActive, listing.StatusProcessing, gomock.Any()).
			Return(true, nil)
		f.notifications.EXPECT().
			Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, n *notification.Notification) error {
				assert.Equal(t, p.SellerID, n.RecipientID)
				assert.Equal(t, notification.TypePurchaseCreated, n.Type)
				assert.Equal(t, notification.SubjectPurchase, n.SubjectType)
				assert.Equal(t, p.ID, n.SubjectID)
				assert.Contains(t, n.Message, p.OrderNumber)
				assert.Contains(t, n.Message, "Concert A")
				return nil
			})
		f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusNone, To: purchase.StatusPendingPayment,
			ActorID: p.BuyerID, Role: purchase.RoleBuyer,
		})
	})

	t.Run("seller transition notifies buyer", func(t *testing.T) {
		f := newFixture(t, Config{})
		p := directPurchase(purchase.StatusProcessing)

		f.notifications.EXPECT().
			Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, n *notification.Notification) error {
				assert.Equal(t, p.BuyerID, n.RecipientID)
				assert.Equal(t, notification.TypePurchaseProcessing, n.Type)
				return nil
			})
		f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusPendingPayment, To: purchase.StatusProcessing,
			ActorID: p.SellerID, Role: purchase.RoleSeller,
		})
	})

	t.Run("system creation tells proposer their proposal was accepted", func(t *testing.T) {
		f := newFixture(t, Config{})
		p := directPurchase(purchase.StatusPendingPayment)
		p.ListingID = nil

		f.notifications.EXPECT().
			Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, n *notification.Notification) error {
				assert.Equal(t, p.SellerID, n.RecipientID)
				assert.Equal(t, notification.TypeProposalAccepted, n.Type)
				return nil
			})
		f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusNone, To: purchase.StatusPendingPayment,
			ActorID: p.BuyerID, Role: purchase.RoleSystem,
		})
	})

	t.Run("confirmation marks listing sold", func(t *testing.T) {
		f := newFixture(t, Config{})
		p := directPurchase(purchase.StatusConfirmed)

		f.listings.EXPECT().UpdateStatus(ctx, *p.ListingID, listing.StatusSold, gomock.Any()).Return(true, nil)
		f.notifications.EXPECT().Create(ctx, gomock.Any()).Return(nil)
		f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusCompleted, To: purchase.StatusConfirmed,
			ActorID: p.BuyerID, Role: purchase.RoleBuyer,
		})
	})

	t.Run("cancellation relists when enabled", func(t *testing.T) {
		f := newFixture(t, Config{RelistOnCancel: true})
		p := directPurchase(purchase.StatusCancelled)

		f.listings.EXPECT().
			CompareAndSetStatus(ctx, *p.ListingID, listing.StatusProcessing, listing.StatusActive, gomock.Any()).
			Return(true, nil)
		f.notifications.EXPECT().Create(ctx, gomock.Any()).Return(nil)
		f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusPendingPayment, To: purchase.StatusCancelled,
			ActorID: p.BuyerID, Role: purchase.RoleBuyer,
		})
	})

	t.Run("cancellation keeps listing when relisting is disabled", func(t *testing.T) {
		f := newFixture(t, Config{RelistOnCancel: false})
		p := directPurchase(purchase.StatusCancelled)

		f.notifications.EXPECT().Create(ctx, gomock.Any()).Return(nil)
		f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusPendingPayment, To: purchase.StatusCancelled,
			ActorID: p.SellerID, Role: purchase.RoleSeller,
		})
	})

	t.Run("listing failure is swallowed and notification still sent", func(t *testing.T) {
		f := newFixture(t, Config{})
		p := directPurchase(purchase.StatusPendingPayment)

		f.listings.EXPECT().
			CompareAndSetStatus(ctx, *p.ListingID, listing.StatusActive, listing.StatusProcessing, gomock.Any()).
			Return(false, errors.New("db down"))
		f.notifications.EXPECT().Create(ctx, gomock.Any()).Return(nil)
		f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusNone, To: purchase.StatusPendingPayment,
			ActorID: p.BuyerID, Role: purchase.RoleBuyer,
		})
	})

	t.Run("notification retried then given up", func(t *testing.T) {
		f := newFixture(t, Config{NotificationRetries: 2, RetryDelay: time.Millisecond})
		p := directPurchase(purchase.StatusCompleted)

		f.notifications.EXPECT().Create(ctx, gomock.Any()).Return(errors.New("timeout")).Times(3)

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusProcessing, To: purchase.StatusCompleted,
			ActorID: p.SellerID, Role: purchase.RoleSeller,
		})
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SideEffectFailures("notification")))
	})

	t.Run("notification succeeds on retry", func(t *testing.T) {
		f := newFixture(t, Config{NotificationRetries: 2})
		p := directPurchase(purchase.StatusCompleted)

		gomock.InOrder(
			f.notifications.EXPECT().Create(ctx, gomock.Any()).Return(errors.New("timeout")),
			f.notifications.EXPECT().Create(ctx, gomock.Any()).Return(nil),
		)
		f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("redis down"))

		f.dispatcher.OnTransition(ctx, purchase.Event{
			Purchase: p, From: purchase.StatusProcessing, To: purchase.StatusCompleted,
			ActorID: p.SellerID, Role: purchase.RoleSeller,
		})
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SideEffectFailures("publish")))
	})
}

func TestDispatcher_OnProposalRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	o := offer.NewOffer(uuid.New(), offer.Criteria{EventName: "Festival", Quantity: 1}, time.Now())
	p := offer.NewProposal(o.ID, uuid.New(), decimal.NewFromInt(50), "", time.Now())

	f.notifications.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, n *notification.Notification) error {
			assert.Equal(t, p.ProposerID, n.RecipientID)
			assert.Equal(t, notification.SubjectProposal, n.SubjectType)
			assert.Equal(t, p.ID, n.SubjectID)
			assert.Equal(t, notification.TypeProposalRejected, n.Type)
			return nil
		})
	f.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	f.dispatcher.OnProposalRejected(ctx, o, p)
}
