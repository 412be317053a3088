package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/domain/purchase"
)

const purchaseColumns = `id, order_number, listing_id, offer_id, proposal_id, buyer_id, seller_id, title, quantity, unit_price, total_price, fee_amount, status, created_at, updated_at`

// PurchaseRepository implements purchase.Repository.
type PurchaseRepository struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepository(pool *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{pool: pool}
}

func (r *PurchaseRepository) Create(ctx context.Context, p *purchase.Purchase) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, p.ID, p.OrderNumber, p.ListingID, p.OfferID, p.ProposalID, p.BuyerID, p.SellerID, p.Title, p.Quantity,
		p.UnitPrice, p.TotalPrice, p.FeeAmount, p.Status, p.CreatedAt, p.UpdatedAt)
	if name, ok := uniqueViolation(err); ok {
		switch name {
		case constraintActiveListing:
			return listing.ErrAlreadyInProgress
		case constraintOrderNumber:
			return purchase.ErrDuplicateOrderNumber
		}
	}
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) GetByID(ctx context.Context, purchaseID uuid.UUID) (*purchase.Purchase, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, purchaseID)
	return scanPurchase(row)
}

func (r *PurchaseRepository) FindActiveByListing(ctx context.Context, listingID uuid.UUID) (*purchase.Purchase, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE listing_id=$1 AND status IN ('PENDING_PAYMENT','PROCESSING','COMPLETED')
		LIMIT 1
	`, listingID)
	return scanPurchase(row)
}

func (r *PurchaseRepository) List(ctx context.Context, filter purchase.Filter, limit, offset int) ([]*purchase.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases`
	args := []any{filter.UserID}
	idx := 2
	switch {
	case filter.Role != nil && *filter.Role == purchase.RoleBuyer:
		query += " WHERE buyer_id=$1"
	case filter.Role != nil && *filter.Role == purchase.RoleSeller:
		query += " WHERE seller_id=$1"
	default:
		query += " WHERE (buyer_id=$1 OR seller_id=$1)"
	}
	if filter.Status != nil {
		query += addWhere(query) + " status=$" + itoa(idx)
		args = append(args, *filter.Status)
		idx++
	}
	query += " ORDER BY created_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*purchase.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PurchaseRepository) CompareAndSetStatus(ctx context.Context, purchaseID uuid.UUID, from, to purchase.Status, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE purchases SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4
	`, to, at, purchaseID, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PurchaseRepository) RecordTransition(ctx context.Context, rec *purchase.TransitionRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO purchase_transitions (id, purchase_id, from_status, to_status, actor_id, actor_role, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.PurchaseID, rec.From, rec.To, rec.ActorID, rec.ActorRole, rec.CreatedAt)
	return err
}

func (r *PurchaseRepository) ListTransitions(ctx context.Context, purchaseID uuid.UUID) ([]*purchase.TransitionRecord, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, purchase_id, from_status, to_status, actor_id, actor_role, created_at
		FROM purchase_transitions WHERE purchase_id=$1 ORDER BY created_at ASC
	`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*purchase.TransitionRecord{}
	for rows.Next() {
		var rec purchase.TransitionRecord
		if err := rows.Scan(&rec.ID, &rec.PurchaseID, &rec.From, &rec.To, &rec.ActorID, &rec.ActorRole, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func scanPurchase(row pgx.Row) (*purchase.Purchase, error) {
	var p purchase.Purchase
	if err := row.Scan(&p.ID, &p.OrderNumber, &p.ListingID, &p.OfferID, &p.ProposalID, &p.BuyerID, &p.SellerID, &p.Title,
		&p.Quantity, &p.UnitPrice, &p.TotalPrice, &p.FeeAmount, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
