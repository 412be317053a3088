package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tixswap/tixswap/internal/domain/notification"
	notificationMocks "github.com/tixswap/tixswap/internal/domain/notification/mocks"
)

func TestService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := notificationMocks.NewMockRepository(ctrl)
	service := NewService(repo, zerolog.Nop())
	ctx := context.Background()
	recipient := uuid.New()

	expected := []*notification.Notification{
		notification.NewNotification(recipient, notification.SubjectPurchase, uuid.New(), notification.TypePurchaseCreated, "m"),
	}
	repo.EXPECT().
		List(ctx, notification.Filter{RecipientID: recipient, UnreadOnly: true}, 20, 0).
		Return(expected, nil)

	got, err := service.List(ctx, recipient, true, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestService_MarkRead(t *testing.T) {
	ctx := context.Background()
	recipient := uuid.New()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := notificationMocks.NewMockRepository(ctrl)
		service := NewService(repo, zerolog.Nop())

		n := notification.NewNotification(recipient, notification.SubjectPurchase, uuid.New(), notification.TypePurchaseCreated, "m")
		repo.EXPECT().GetByID(ctx, n.ID).Return(n, nil)
		repo.EXPECT().MarkRead(ctx, n.ID, gomock.Any()).Return(nil)

		got, err := service.MarkRead(ctx, n.ID, recipient)
		require.NoError(t, err)
		assert.True(t, got.Read)
		assert.NotNil(t, got.ReadAt)
	})

	t.Run("already read is idempotent", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := notificationMocks.NewMockRepository(ctrl)
		service := NewService(repo, zerolog.Nop())

		n := notification.NewNotification(recipient, notification.SubjectPurchase, uuid.New(), notification.TypePurchaseCreated, "m")
		n.Read = true
		repo.EXPECT().GetByID(ctx, n.ID).Return(n, nil)

		got, err := service.MarkRead(ctx, n.ID, recipient)
		require.NoError(t, err)
		assert.True(t, got.Read)
	})

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := notificationMocks.NewMockRepository(ctrl)
		service := NewService(repo, zerolog.Nop())

		id := uuid.New()
		repo.EXPECT().GetByID(ctx, id).Return(nil, nil)

		_, err := service.MarkRead(ctx, id, recipient)
		assert.ErrorIs(t, err, notification.ErrNotFound)
	})

	t.Run("other recipient", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := notificationMocks.NewMockRepository(ctrl)
		service := NewService(repo, zerolog.Nop())

		n := notification.NewNotification(uuid.New(), notification.SubjectPurchase, uuid.New(), notification.TypePurchaseCreated, "m")
		repo.EXPECT().GetByID(ctx, n.ID).Return(n, nil)

		_, err := service.MarkRead(ctx, n.ID, recipient)
		assert.ErrorIs(t, err, notification.ErrNotRecipient)
	})

	t.Run("repository error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := notificationMocks.NewMockRepository(ctrl)
		service := NewService(repo, zerolog.Nop())

		dbErr := errors.New("db down")
		id := uuid.New()
		repo.EXPECT().GetByID(ctx, id).Return(nil, dbErr)

		_, err := service.MarkRead(ctx, id, recipient)
		assert.ErrorIs(t, err, dbErr)
	})
}
