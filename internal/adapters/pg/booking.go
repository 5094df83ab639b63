package pg

import (
	"context"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReserveCapacity atomically claims inventory for every booking line. Each
// conditional UPDATE only matches while the counters leave room, so under
// concurrent requests for the last tickets exactly one transaction sees an
// affected row and the rest observe zero and lose. No read-then-write gap.
func (r *Repository) ReserveCapacity(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, lines []domain.BookingLine) error {
	total := 0
	for _, line := range lines {
		result, err := tx.Exec(ctx, `
			UPDATE ticket_types
			SET reserved = reserved + $3
			WHERE event_id = $1 AND name = $2
			  AND issued + reserved + $3 <= quantity
		`, eventID, line.TicketType, line.Quantity)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return &domain.ValidationError{Reasons: []string{"not enough \"" + line.TicketType + "\" tickets remaining"}}
		}
		total += line.Quantity
	}

	result, err := tx.Exec(ctx, `
		UPDATE events
		SET tickets_reserved = tickets_reserved + $2
		WHERE id = $1 AND tickets_sold + tickets_reserved + $2 <= capacity
	`, eventID, total)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return &domain.ValidationError{Reasons: []string{"event capacity exceeded"}}
	}
	return nil
}

// ReleaseCapacity undoes a reservation for a booking that never converted.
func (r *Repository) ReleaseCapacity(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, lines []domain.BookingLine) error {
	total := 0
	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
			UPDATE ticket_types
			SET reserved = GREATEST(reserved - $3, 0)
			WHERE event_id = $1 AND name = $2
		`, eventID, line.TicketType, line.Quantity); err != nil {
			return err
		}
		total += line.Quantity
	}
	_, err := tx.Exec(ctx, `
		UPDATE events SET tickets_reserved = GREATEST(tickets_reserved - $2, 0)
		WHERE id = $1
	`, eventID, total)
	return err
}

func (r *Repository) InsertBooking(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, reference, user_id, event_id, subtotal,
			service_fee, total, currency, status, payment_status, holder_name,
			holder_email, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, b.ID, b.Reference, b.UserID, b.EventID, b.Subtotal, b.ServiceFee,
		b.Total, b.Currency, b.Status, b.PaymentStatus, b.HolderName,
		b.HolderEmail, b.ExpiresAt, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}

	for seq, line := range b.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO booking_lines (booking_id, seq, ticket_type, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, b.ID, seq, line.TicketType, line.Quantity, line.UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetLiveBooking returns the user's most recent non-terminal booking for
// the event, or ErrNotFound.
func (r *Repository) GetLiveBooking(ctx context.Context, userID, eventID uuid.UUID) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, reference, user_id, event_id, subtotal, service_fee, total,
		       currency, status, payment_status, holder_name, holder_email,
		       expires_at, created_at, updated_at
		FROM bookings
		WHERE user_id = $1 AND event_id = $2 AND status IN ('pending', 'confirmed')
		ORDER BY created_at DESC LIMIT 1
	`, userID, eventID)
	return r.scanBooking(ctx, row)
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, reference, user_id, event_id, subtotal, service_fee, total,
		       currency, status, payment_status, holder_name, holder_email,
		       expires_at, created_at, updated_at
		FROM bookings WHERE id = $1
	`, id)
	return r.scanBooking(ctx, row)
}

func (r *Repository) GetBookingByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, reference, user_id, event_id, subtotal, service_fee, total,
		       currency, status, payment_status, holder_name, holder_email,
		       expires_at, created_at, updated_at
		FROM bookings WHERE reference = $1
	`, reference)
	return r.scanBooking(ctx, row)
}

func (r *Repository) scanBooking(ctx context.Context, row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.Reference, &b.UserID, &b.EventID, &b.Subtotal,
		&b.ServiceFee, &b.Total, &b.Currency, &b.Status, &b.PaymentStatus,
		&b.HolderName, &b.HolderEmail, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ticket_type, quantity, unit_price
		FROM booking_lines WHERE booking_id = $1 ORDER BY seq
	`, b.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.BookingLine
		if err := rows.Scan(&line.TicketType, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		b.Lines = append(b.Lines, line)
	}
	return &b, rows.Err()
}

// UpdateBookingStatus transitions a booking, guarded by the expected
// current status so concurrent transitions cannot double-apply.
func (r *Repository) UpdateBookingStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.BookingStatus, payment domain.PaymentStatus, now time.Time) error {
	if !from.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}
	result, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $3, payment_status = $4, updated_at = $5
		WHERE id = $1 AND status = $2
	`, id, from, to, payment, now)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *Repository) MarkPaymentProcessing(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings SET payment_status = 'processing', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, now)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetExpiredPendingBookings lists pending bookings past their expiry, for
// the sweeper. Results include lines so reservations can be released.
func (r *Repository) GetExpiredPendingBookings(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM bookings
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bookings := make([]domain.Booking, 0, len(ids))
	for _, id := range ids {
		b, err := r.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

// CancelExpiredBooking cancels one stale pending booking and releases its
// reserved capacity in a single transaction. Safe to re-run: the guarded
// status update makes the second attempt a no-op conflict.
func (r *Repository) CancelExpiredBooking(ctx context.Context, b *domain.Booking, now time.Time) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.UpdateBookingStatus(ctx, tx, b.ID, domain.BookingPending, domain.BookingCancelled, b.PaymentStatus, now); err != nil {
			return err
		}
		return r.ReleaseCapacity(ctx, tx, b.EventID, b.Lines)
	})
}
