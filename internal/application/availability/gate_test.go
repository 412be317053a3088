package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tixswap/tixswap/internal/domain/listing"
	listingMocks "github.com/tixswap/tixswap/internal/domain/listing/mocks"
	"github.com/tixswap/tixswap/internal/domain/offer"
	"github.com/tixswap/tixswap/internal/domain/purchase"
	"github.com/tixswap/tixswap/internal/infrastructure/memory"
)

func newListing(sellerID uuid.UUID, status listing.Status) *listing.Listing {
	now := time.Now().UTC()
	return &listing.Listing{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Title:     "Concert",
		Status:    status,
		Price:     decimal.NewFromInt(100),
		Quantity:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGate_CanPurchase(t *testing.T) {
	ctx := context.Background()
	seller := uuid.New()
	buyer := uuid.New()

	setup := func(t *testing.T) (*memory.Store, *Gate) {
		t.Helper()
		st := memory.NewStore()
		return st, NewGate(st.Listings(), st.Purchases(), st.Offers(), zerolog.Nop())
	}

	t.Run("available listing", func(t *testing.T) {
		st, gate := setup(t)
		l := newListing(seller, listing.StatusActive)
		require.NoError(t, st.Listings().Create(ctx, l))

		got, err := gate.CanPurchase(ctx, l.ID, buyer)
		require.NoError(t, err)
		assert.Equal(t, l.ID, got.ID)
	})

	t.Run("missing listing", func(t *testing.T) {
		_, gate := setup(t)
		_, err := gate.CanPurchase(ctx, uuid.New(), buyer)
		assert.ErrorIs(t, err, listing.ErrNotFound)
	})

	t.Run("soft deleted listing is not found", func(t *testing.T) {
		st, gate := setup(t)
		l := newListing(seller, listing.StatusActive)
		deletedAt := time.Now()
		l.DeletedAt = &deletedAt
		require.NoError(t, st.Listings().Create(ctx, l))

		_, err := gate.CanPurchase(ctx, l.ID, buyer)
		assert.ErrorIs(t, err, listing.ErrNotFound)
	})

	t.Run("self purchase is checked before status", func(t *testing.T) {
		st, gate := setup(t)
		l := newListing(seller, listing.StatusSold)
		require.NoError(t, st.Listings().Create(ctx, l))

		_, err := gate.CanPurchase(ctx, l.ID, seller)
		assert.ErrorIs(t, err, listing.ErrSelfPurchase)
	})

	t.Run("inactive listing", func(t *testing.T) {
		st, gate := setup(t)
		l := newListing(seller, listing.StatusProcessing)
		require.NoError(t, st.Listings().Create(ctx, l))

		_, err := gate.CanPurchase(ctx, l.ID, buyer)
		assert.ErrorIs(t, err, listing.ErrNotActive)
	})

	t.Run("active purchase blocks", func(t *testing.T) {
		st, gate := setup(t)
		l := newListing(seller, listing.StatusActive)
		require.NoError(t, st.Listings().Create(ctx, l))
		listingID := l.ID
		require.NoError(t, st.Purchases().Create(ctx, &purchase.Purchase{
			ID:          uuid.New(),
			OrderNumber: "ORDER-1",
			ListingID:   &listingID,
			BuyerID:     uuid.New(),
			SellerID:    seller,
			Quantity:    1,
			Status:      purchase.StatusPendingPayment,
			CreatedAt:   time.Now(),
		}))

		_, err := gate.CanPurchase(ctx, l.ID, buyer)
		assert.ErrorIs(t, err, listing.ErrAlreadyInProgress)
	})

	t.Run("cancelled purchase does not block", func(t *testing.T) {
		st, gate := setup(t)
		l := newListing(seller, listing.StatusActive)
		require.NoError(t, st.Listings().Create(ctx, l))
		listingID := l.ID
		require.NoError(t, st.Purchases().Create(ctx, &purchase.Purchase{
			ID:          uuid.New(),
			OrderNumber: "ORDER-2",
			ListingID:   &listingID,
			BuyerID:     uuid.New(),
			SellerID:    seller,
			Quantity:    1,
			Status:      purchase.StatusCancelled,
			CreatedAt:   time.Now(),
		}))

		_, err := gate.CanPurchase(ctx, l.ID, buyer)
		assert.NoError(t, err)
	})

	t.Run("repository error is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		listings := listingMocks.NewMockRepository(ctrl)
		st := memory.NewStore()
		gate := NewGate(listings, st.Purchases(), st.Offers(), zerolog.Nop())

		dbErr := errors.New("connection reset")
		listingID := uuid.New()
		listings.EXPECT().GetByID(ctx, listingID).Return(nil, dbErr)

		_, err := gate.CanPurchase(ctx, listingID, buyer)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestGate_CanPropose(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	gate := NewGate(st.Listings(), st.Purchases(), st.Offers(), zerolog.Nop())
	requester := uuid.New()

	open := offer.NewOffer(requester, offer.Criteria{EventName: "Festival", Quantity: 1}, time.Now())
	require.NoError(t, st.Offers().CreateOffer(ctx, open))
	closed := offer.NewOffer(requester, offer.Criteria{EventName: "Festival", Quantity: 1}, time.Now())
	closed.Status = offer.StatusClosed
	require.NoError(t, st.Offers().CreateOffer(ctx, closed))

	tests := []struct {
		name     string
		offerID  uuid.UUID
		proposer uuid.UUID
		wantErr  error
	}{
		{name: "open offer", offerID: open.ID, proposer: uuid.New()},
		{name: "missing offer", offerID: uuid.New(), proposer: uuid.New(), wantErr: offer.ErrOfferNotFound},
		{name: "closed offer", offerID: closed.ID, proposer: uuid.New(), wantErr: offer.ErrOfferClosed},
		{name: "own offer", offerID: open.ID, proposer: requester, wantErr: offer.ErrSelfProposal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.CanPropose(ctx, tt.offerID, tt.proposer)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.offerID, got.ID)
		})
	}
}
