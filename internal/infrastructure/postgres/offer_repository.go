package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tixswap/tixswap/internal/domain/offer"
)

const (
	offerColumns    = `id, requester_id, event_name, event_date, max_price, quantity, section_preference, status, created_at, updated_at`
	proposalColumns = `id, offer_id, proposer_id, price, section_info, status, created_at, updated_at`
)

// OfferRepository implements offer.Repository.
type OfferRepository struct {
	pool *pgxpool.Pool
}

func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

func (r *OfferRepository) CreateOffer(ctx context.Context, o *offer.Offer) error {
	c := o.Criteria
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO offers (`+offerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, o.ID, o.RequesterID, c.EventName, c.EventDate, c.MaxPrice, c.Quantity, c.SectionPreference, o.Status, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *OfferRepository) GetOffer(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=$1`, offerID)
	return scanOffer(row)
}

func (r *OfferRepository) GetOfferForUpdate(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=$1 FOR UPDATE`, offerID)
	return scanOffer(row)
}

func (r *OfferRepository) ListOpenOffers(ctx context.Context, limit, offset int) ([]*offer.Offer, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+offerColumns+` FROM offers WHERE status='OPEN'
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*offer.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OfferRepository) SetOfferStatus(ctx context.Context, offerID uuid.UUID, status offer.Status, at time.Time) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `UPDATE offers SET status=$1, updated_at=$2 WHERE id=$3`, status, at, offerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return offer.ErrOfferNotFound
	}
	return nil
}

func (r *OfferRepository) CreateProposal(ctx context.Context, p *offer.Proposal) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO proposals (`+proposalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.OfferID, p.ProposerID, p.Price, p.SectionInfo, p.Status, p.CreatedAt, p.UpdatedAt)
	if name, ok := uniqueViolation(err); ok && name == constraintOfferProposer {
		return offer.ErrDuplicateProposal
	}
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	return nil
}

func (r *OfferRepository) GetProposal(ctx context.Context, proposalID uuid.UUID) (*offer.Proposal, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=$1`, proposalID)
	return scanProposal(row)
}

func (r *OfferRepository) FindProposal(ctx context.Context, offerID, proposerID uuid.UUID) (*offer.Proposal, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+proposalColumns+` FROM proposals WHERE offer_id=$1 AND proposer_id=$2
	`, offerID, proposerID)
	return scanProposal(row)
}

func (r *OfferRepository) ListProposals(ctx context.Context, offerID uuid.UUID) ([]*offer.Proposal, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+proposalColumns+` FROM proposals WHERE offer_id=$1 ORDER BY created_at ASC
	`, offerID)
	if err != nil {
		return nil, err
	}
	return collectProposals(rows)
}

func (r *OfferRepository) CompareAndSetProposalStatus(ctx context.Context, proposalID uuid.UUID, from, to offer.ProposalStatus, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE proposals SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4
	`, to, at, proposalID, from)
	if name, ok := uniqueViolation(err); ok && name == constraintOneAcceptedOffer {
		return false, offer.ErrAlreadyProcessed
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OfferRepository) RejectPendingProposals(ctx context.Context, offerID uuid.UUID, keep *uuid.UUID, at time.Time) ([]*offer.Proposal, error) {
	query := `UPDATE proposals SET status='REJECTED', updated_at=$1 WHERE offer_id=$2 AND status='PENDING'`
	args := []any{at, offerID}
	if keep != nil {
		query += ` AND id <> $3`
		args = append(args, *keep)
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query+` RETURNING `+proposalColumns, args...)
	if err != nil {
		return nil, err
	}
	return collectProposals(rows)
}

func collectProposals(rows pgx.Rows) ([]*offer.Proposal, error) {
	defer rows.Close()
	out := []*offer.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanOffer(row pgx.Row) (*offer.Offer, error) {
	var o offer.Offer
	c := &o.Criteria
	if err := row.Scan(&o.ID, &o.RequesterID, &c.EventName, &c.EventDate, &c.MaxPrice, &c.Quantity, &c.SectionPreference, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func scanProposal(row pgx.Row) (*offer.Proposal, error) {
	var p offer.Proposal
	if err := row.Scan(&p.ID, &p.OfferID, &p.ProposerID, &p.Price, &p.SectionInfo, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
