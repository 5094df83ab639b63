package pg

import (
	"context"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, organizer_id, gross_amount, commission,
	processing_fee, net_amount, currency, status, processor_ref,
	failure_reason, requested_at, approved_at, processed_at, completed_at,
	stuck_flagged_at`

func (r *Repository) InsertPayout(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payouts (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, p.ID, p.OrganizerID, p.GrossAmount, p.Commission, p.ProcessingFee,
		p.NetAmount, p.Currency, p.Status, p.ProcessorRef, p.FailureReason,
		p.RequestedAt, p.ApprovedAt, p.ProcessedAt, p.CompletedAt, p.StuckFlaggedAt)
	return err
}

func (r *Repository) GetPayout(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	return scanPayout(row)
}

func (r *Repository) ListPayoutsByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.Payout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE status = $1 ORDER BY requested_at ASC LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// SavePayoutTransition persists a status change, guarded by the expected
// current status. A concurrent reconciler pass that already applied the
// same transition sees zero rows and reports ErrConflict.
func (r *Repository) SavePayoutTransition(ctx context.Context, p *domain.Payout, from domain.PayoutStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE payouts
		SET status = $3, processor_ref = $4, failure_reason = $5,
		    approved_at = $6, processed_at = $7, completed_at = $8
		WHERE id = $1 AND status = $2
	`, p.ID, from, p.Status, p.ProcessorRef, p.FailureReason,
		p.ApprovedAt, p.ProcessedAt, p.CompletedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// FlagPayoutStuck records the first stuck detection for a payout. The
// conditional update makes the flag (and therefore the notification that
// follows it) fire once per payout even across overlapping sweeps.
func (r *Repository) FlagPayoutStuck(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE payouts SET stuck_flagged_at = $2
		WHERE id = $1 AND stuck_flagged_at IS NULL
	`, id, now)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(&p.ID, &p.OrganizerID, &p.GrossAmount, &p.Commission,
		&p.ProcessingFee, &p.NetAmount, &p.Currency, &p.Status,
		&p.ProcessorRef, &p.FailureReason, &p.RequestedAt, &p.ApprovedAt,
		&p.ProcessedAt, &p.CompletedAt, &p.StuckFlaggedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
