package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/domain/notification"
	"github.com/tixswap/tixswap/internal/domain/offer"
	"github.com/tixswap/tixswap/internal/domain/purchase"
)

type txKey struct{}

// Store is an in-process implementation of every repository. It enforces the
// same uniqueness rules as the Postgres schema and runs transactions one at a
// time, restoring the previous state when a transaction function fails.
type Store struct {
	mu     sync.Mutex
	state  state
	faults map[string]error
}

type state struct {
	listings      map[uuid.UUID]listing.Listing
	offers        map[uuid.UUID]offer.Offer
	proposals     map[uuid.UUID]offer.Proposal
	purchases     map[uuid.UUID]purchase.Purchase
	transitions   []purchase.TransitionRecord
	notifications map[uuid.UUID]notification.Notification
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		state: state{
			listings:      map[uuid.UUID]listing.Listing{},
			offers:        map[uuid.UUID]offer.Offer{},
			proposals:     map[uuid.UUID]offer.Proposal{},
			purchases:     map[uuid.UUID]purchase.Purchase{},
			notifications: map[uuid.UUID]notification.Notification{},
		},
		faults: map[string]error{},
	}
}

// WithTx implements store.TxManager. A nested call restores only its own changes on failure.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
		ctx = context.WithValue(ctx, txKey{}, s)
	}

	saved := s.state.clone()
	if err := fn(ctx); err != nil {
		s.state = saved
		return err
	}
	return nil
}

// FailNext makes the next call of the named repository operation return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// Listings returns the listing repository view of the store.
func (s *Store) Listings() *ListingRepository {
	return &ListingRepository{s: s}
}

// Offers returns the offer repository view of the store.
func (s *Store) Offers() *OfferRepository {
	return &OfferRepository{s: s}
}

// Purchases returns the purchase repository view of the store.
func (s *Store) Purchases() *PurchaseRepository {
	return &PurchaseRepository{s: s}
}

// Notifications returns the notification repository view of the store.
func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{s: s}
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store unless ctx already runs inside its transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// fault must be called with the store locked.
func (s *Store) fault(op string) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

func (st state) clone() state {
	out := state{
		listings:      make(map[uuid.UUID]listing.Listing, len(st.listings)),
		offers:        make(map[uuid.UUID]offer.Offer, len(st.offers)),
		proposals:     make(map[uuid.UUID]offer.Proposal, len(st.proposals)),
		purchases:     make(map[uuid.UUID]purchase.Purchase, len(st.purchases)),
		transitions:   append([]purchase.TransitionRecord(nil), st.transitions...),
		notifications: make(map[uuid.UUID]notification.Notification, len(st.notifications)),
	}
	for k, v := range st.listings {
		out.listings[k] = v
	}
	for k, v := range st.offers {
		out.offers[k] = v
	}
	for k, v := range st.proposals {
		out.proposals[k] = v
	}
	for k, v := range st.purchases {
		out.purchases[k] = v
	}
	for k, v := range st.notifications {
		out.notifications[k] = v
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
