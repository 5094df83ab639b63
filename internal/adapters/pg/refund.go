package pg

import (
	"context"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const refundColumns = `id, booking_id, user_id, requested_amount,
	approved_amount, currency, status, reason, reviewer_id, review_notes,
	created_at, updated_at`

// InsertRefundRequest creates a request unless the booking already has a
// non-terminal one. The partial unique index on open statuses enforces
// this at the database level; the insert surfaces it as ErrConflict.
func (r *Repository) InsertRefundRequest(ctx context.Context, tx pgx.Tx, req *domain.RefundRequest) error {
	result, err := tx.Exec(ctx, `
		INSERT INTO refund_requests (`+refundColumns+`)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE NOT EXISTS (
			SELECT 1 FROM refund_requests
			WHERE booking_id = $2 AND status IN ('pending', 'reviewing', 'approved')
		)
	`, req.ID, req.BookingID, req.UserID, req.RequestedAmount,
		req.ApprovedAmount, req.Currency, req.Status, req.Reason,
		req.ReviewerID, req.ReviewNotes, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *Repository) GetRefundRequest(ctx context.Context, id uuid.UUID) (*domain.RefundRequest, error) {
	var req domain.RefundRequest
	err := r.pool.QueryRow(ctx, `
		SELECT `+refundColumns+` FROM refund_requests WHERE id = $1
	`, id).Scan(&req.ID, &req.BookingID, &req.UserID, &req.RequestedAmount,
		&req.ApprovedAmount, &req.Currency, &req.Status, &req.Reason,
		&req.ReviewerID, &req.ReviewNotes, &req.CreatedAt, &req.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) SaveRefundTransition(ctx context.Context, tx pgx.Tx, req *domain.RefundRequest, from domain.RefundStatus) error {
	if !from.CanTransitionTo(req.Status) {
		return domain.ErrInvalidTransition
	}
	result, err := tx.Exec(ctx, `
		UPDATE refund_requests
		SET status = $3, approved_amount = $4, reviewer_id = $5,
		    review_notes = $6, updated_at = $7
		WHERE id = $1 AND status = $2
	`, req.ID, from, req.Status, req.ApprovedAmount, req.ReviewerID,
		req.ReviewNotes, req.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}
