package pg

import (
	"context"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const txColumns = `id, type, booking_id, organizer_id, user_id, payout_id,
	related_tx_id, amount, commission_amount, gateway_fee, net_amount,
	currency, gateway, payment_method, gateway_ref, status, reason,
	created_at, completed_at`

func (r *Repository) InsertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (`+txColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, t.ID, t.Type, t.BookingID, t.OrganizerID, t.UserID, t.PayoutID,
		t.RelatedTxID, t.Amount, t.CommissionAmount, t.GatewayFee, t.NetAmount,
		t.Currency, t.Gateway, t.PaymentMethod, t.GatewayRef, t.Status,
		t.Reason, t.CreatedAt, t.CompletedAt)
	return err
}

// CompleteTransaction finalises a pending sale with its fee breakdown.
// Completed rows are immutable, so the guard on status makes duplicate
// webhook deliveries a zero-row no-op.
func (r *Repository) CompleteTransaction(ctx context.Context, tx pgx.Tx, id uuid.UUID, commissionAmount, gatewayFee, netAmount decimal.Decimal, gatewayRef string, now time.Time) (bool, error) {
	result, err := tx.Exec(ctx, `
		UPDATE transactions
		SET status = 'completed', commission_amount = $2, gateway_fee = $3,
		    net_amount = $4, gateway_ref = $5, completed_at = $6
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, id, commissionAmount, gatewayFee, netAmount, gatewayRef, now)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) FailTransaction(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET status = 'failed', reason = $2, completed_at = $3
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, id, reason, now)
	return err
}

func (r *Repository) GetPendingSaleForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*domain.Transaction, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE booking_id = $1 AND type = 'ticket_sale' AND status IN ('pending', 'processing')
		ORDER BY created_at DESC LIMIT 1
	`, bookingID)
	return scanTransaction(row)
}

func (r *Repository) GetCompletedSaleForBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE booking_id = $1 AND type = 'ticket_sale' AND status = 'completed'
		ORDER BY completed_at DESC LIMIT 1
	`, bookingID)
	return scanTransaction(row)
}

// SumRefundedForBooking totals the completed refunds already applied
// against a booking's sale, as a positive amount. Callers run it inside
// the refund transaction so concurrent refunds serialize against each
// other instead of both reading a stale total.
func (r *Repository) SumRefundedForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(ABS(amount)), 0)
		FROM transactions
		WHERE booking_id = $1 AND type = 'refund' AND status = 'completed'
	`, bookingID).Scan(&total)
	return total, err
}

// ListSettleable returns the organizer's completed sales and refunds in a
// period, for pure aggregation into a payout.
func (r *Repository) ListSettleable(ctx context.Context, organizerID uuid.UUID, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE organizer_id = $1
		  AND type IN ('ticket_sale', 'refund')
		  AND status = 'completed'
		  AND payout_id IS NULL
		  AND completed_at >= $2 AND completed_at < $3
		ORDER BY completed_at ASC
	`, organizerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// LinkToPayout stamps settled transactions with their payout id so a
// second payout request cannot settle them again.
func (r *Repository) LinkToPayout(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID, txIDs []uuid.UUID) error {
	for _, id := range txIDs {
		result, err := tx.Exec(ctx, `
			UPDATE transactions SET payout_id = $2
			WHERE id = $1 AND payout_id IS NULL
		`, id, payoutID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrConflict
		}
	}
	return nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.Type, &t.BookingID, &t.OrganizerID, &t.UserID,
		&t.PayoutID, &t.RelatedTxID, &t.Amount, &t.CommissionAmount,
		&t.GatewayFee, &t.NetAmount, &t.Currency, &t.Gateway,
		&t.PaymentMethod, &t.GatewayRef, &t.Status, &t.Reason,
		&t.CreatedAt, &t.CompletedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
