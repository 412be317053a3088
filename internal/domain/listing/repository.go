package listing

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for listings.
// GetByID returns nil, nil when the listing does not exist.
type Repository interface {
	Create(ctx context.Context, l *Listing) error
	GetByID(ctx context.Context, listingID uuid.UUID) (*Listing, error)
	// UpdateStatus sets the status unconditionally and reports whether a row changed.
	UpdateStatus(ctx context.Context, listingID uuid.UUID, status Status, at time.Time) (bool, error)
	// CompareAndSetStatus updates the status only if it currently equals from.
	CompareAndSetStatus(ctx context.Context, listingID uuid.UUID, from, to Status, at time.Time) (bool, error)
}
