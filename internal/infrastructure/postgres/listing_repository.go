package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tixswap/tixswap/internal/domain/listing"
)

const listingColumns = `id, seller_id, title, status, price, quantity, deleted_at, created_at, updated_at`

// ListingRepository implements listing.Repository.
type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, l.ID, l.SellerID, l.Title, l.Status, l.Price, l.Quantity, l.DeletedAt, l.CreatedAt, l.UpdatedAt)
	return err
}

func (r *ListingRepository) GetByID(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=$1`, listingID)
	return scanListing(row)
}

func (r *ListingRepository) UpdateStatus(ctx context.Context, listingID uuid.UUID, status listing.Status, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `UPDATE listings SET status=$1, updated_at=$2 WHERE id=$3`, status, at, listingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ListingRepository) CompareAndSetStatus(ctx context.Context, listingID uuid.UUID, from, to listing.Status, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE listings SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4
	`, to, at, listingID, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanListing(row pgx.Row) (*listing.Listing, error) {
	var l listing.Listing
	if err := row.Scan(&l.ID, &l.SellerID, &l.Title, &l.Status, &l.Price, &l.Quantity, &l.DeletedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}
