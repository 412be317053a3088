package notification

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository,Publisher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for notification persistence
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// GetByID returns nil, nil when the notification does not exist.
	GetByID(ctx context.Context, notificationID uuid.UUID) (*Notification, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Notification, error)
	MarkRead(ctx context.Context, notificationID uuid.UUID, readAt time.Time) error
}

// Publisher hands stored notifications to the external delivery surface
type Publisher interface {
	Publish(ctx context.Context, n *Notification) error
}

// Publishers hands a notification to each publisher in turn and joins their errors.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, n *Notification) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
