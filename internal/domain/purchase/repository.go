package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter controls purchase listing for a participant.
type Filter struct {
	UserID uuid.UUID
	Role   *Role
	Status *Status
}

// Repository defines persistence for purchases and their transition history.
// Getters return nil, nil when the purchase does not exist.
type Repository interface {
	// Create inserts a purchase. It returns listing.ErrAlreadyInProgress when the
	// listing already has an active purchase and ErrDuplicateOrderNumber when the
	// order number is taken.
	Create(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, purchaseID uuid.UUID) (*Purchase, error)
	FindActiveByListing(ctx context.Context, listingID uuid.UUID) (*Purchase, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Purchase, error)
	// CompareAndSetStatus updates the status only if it currently equals from.
	CompareAndSetStatus(ctx context.Context, purchaseID uuid.UUID, from, to Status, at time.Time) (bool, error)
	RecordTransition(ctx context.Context, rec *TransitionRecord) error
	ListTransitions(ctx context.Context, purchaseID uuid.UUID) ([]*TransitionRecord, error)
}
