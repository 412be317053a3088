package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tixswap/tixswap/internal/domain/notification"
)

const notificationColumns = `id, recipient_id, subject_type, subject_id, type, message, read, created_at, read_at`

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, n.ID, n.RecipientID, n.SubjectType, n.SubjectID, n.Type, n.Message, n.Read, n.CreatedAt, n.ReadAt)
	return err
}

func (r *NotificationRepository) GetByID(ctx context.Context, notificationID uuid.UUID) (*notification.Notification, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, notificationID)
	return scanNotification(row)
}

func (r *NotificationRepository) List(ctx context.Context, filter notification.Filter, limit, offset int) ([]*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id=$1`
	args := []any{filter.RecipientID}
	idx := 2
	if filter.UnreadOnly {
		query += addWhere(query) + " read=FALSE"
	}
	query += " ORDER BY created_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*notification.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID uuid.UUID, readAt time.Time) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE notifications SET read=TRUE, read_at=$1 WHERE id=$2 AND read=FALSE
	`, readAt, notificationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	existing, err := r.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if existing == nil {
		return notification.ErrNotFound
	}
	return notification.ErrAlreadyRead
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var n notification.Notification
	if err := row.Scan(&n.ID, &n.RecipientID, &n.SubjectType, &n.SubjectID, &n.Type, &n.Message, &n.Read, &n.CreatedAt, &n.ReadAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}
