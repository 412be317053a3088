package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tixswap/tixswap/internal/domain/notification"
)

// Service exposes a user's notification inbox.
type Service struct {
	repo   notification.Repository
	logger zerolog.Logger
}

// NewService creates a notification service.
func NewService(repo notification.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "notification").Logger(),
	}
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*notification.Notification, error) {
	return s.repo.List(ctx, notification.Filter{RecipientID: recipientID, UnreadOnly: unreadOnly}, limit, offset)
}

// MarkRead marks a notification read. Marking it twice is not an error.
func (s *Service) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*notification.Notification, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, notification.ErrNotFound
	}
	if n.RecipientID != userID {
		return nil, notification.ErrNotRecipient
	}
	if n.Read {
		return n, nil
	}
	now := time.Now().UTC()
	if err := s.repo.MarkRead(ctx, n.ID, now); err != nil && !errors.Is(err, notification.ErrAlreadyRead) {
		return nil, err
	}
	n.Read = true
	n.ReadAt = &now
	return n, nil
}
