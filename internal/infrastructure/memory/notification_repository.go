package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tixswap/tixswap/internal/domain/notification"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	s *Store
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("notification.Create"); err != nil {
		return err
	}
	r.s.state.notifications[n.ID] = *n
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, notificationID uuid.UUID) (*notification.Notification, error) {
	defer r.s.lock(ctx)()
	n, ok := r.s.state.notifications[notificationID]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *NotificationRepository) List(ctx context.Context, filter notification.Filter, limit, offset int) ([]*notification.Notification, error) {
	defer r.s.lock(ctx)()
	var out []*notification.Notification
	for _, n := range r.s.state.notifications {
		if n.RecipientID != filter.RecipientID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		n := n
		out = append(out, &n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID uuid.UUID, readAt time.Time) error {
	defer r.s.lock(ctx)()
	n, ok := r.s.state.notifications[notificationID]
	if !ok {
		return notification.ErrNotFound
	}
	if err := n.MarkRead(readAt); err != nil {
		return err
	}
	r.s.state.notifications[notificationID] = n
	return nil
}
