package pg

import (
	"context"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) CountTicketsForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets WHERE booking_id = $1
	`, bookingID).Scan(&count)
	return count, err
}

// InsertTickets writes one row per admission unit. The unique constraint
// on (booking_id, line_seq) backs the exactly-once issuance guarantee.
func (r *Repository) InsertTickets(ctx context.Context, tx pgx.Tx, tickets []domain.Ticket) error {
	for _, t := range tickets {
		_, err := tx.Exec(ctx, `
			INSERT INTO tickets (id, code, hash, booking_id, event_id, line_seq,
				ticket_type, price, currency, holder_name, holder_email,
				assigned_to, status, valid_from, valid_until, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, t.ID, t.Code, t.Hash, t.BookingID, t.EventID, t.LineSeq,
			t.TicketType, t.Price, t.Currency, t.HolderName, t.HolderEmail,
			t.AssignedTo, t.Status, t.ValidFrom, t.ValidUntil, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// ApplyIssuanceCounters converts reservations into sales and bumps the
// organizer's lifetime counter, all inside the issuance transaction.
func (r *Repository) ApplyIssuanceCounters(ctx context.Context, tx pgx.Tx, eventID, organizerID uuid.UUID, lines []domain.BookingLine) error {
	total := 0
	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
			UPDATE ticket_types
			SET issued = issued + $3, reserved = GREATEST(reserved - $3, 0)
			WHERE event_id = $1 AND name = $2
		`, eventID, line.TicketType, line.Quantity); err != nil {
			return err
		}
		total += line.Quantity
	}
	if _, err := tx.Exec(ctx, `
		UPDATE events
		SET tickets_sold = tickets_sold + $2,
		    tickets_reserved = GREATEST(tickets_reserved - $2, 0)
		WHERE id = $1
	`, eventID, total); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE organizers SET tickets_sold = tickets_sold + $2 WHERE id = $1
	`, organizerID, total)
	return err
}

func (r *Repository) GetTicket(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, hash, booking_id, event_id, line_seq, ticket_type,
		       price, currency, holder_name, holder_email, assigned_to, status,
		       valid_from, valid_until, transferred_from, transferred_to,
		       transferred_at, transfer_reason, used_at, used_by, entry_gate,
		       created_at, updated_at
		FROM tickets WHERE id = $1
	`, id)
	return scanTicket(row)
}

func (r *Repository) TicketsForBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, hash, booking_id, event_id, line_seq, ticket_type,
		       price, currency, holder_name, holder_email, assigned_to, status,
		       valid_from, valid_until, transferred_from, transferred_to,
		       transferred_at, transfer_reason, used_at, used_by, entry_gate,
		       created_at, updated_at
		FROM tickets WHERE booking_id = $1 ORDER BY line_seq
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(&t.ID, &t.Code, &t.Hash, &t.BookingID, &t.EventID,
		&t.LineSeq, &t.TicketType, &t.Price, &t.Currency, &t.HolderName,
		&t.HolderEmail, &t.AssignedTo, &t.Status, &t.ValidFrom, &t.ValidUntil,
		&t.TransferredFrom, &t.TransferredTo, &t.TransferredAt,
		&t.TransferReason, &t.UsedAt, &t.UsedBy, &t.EntryGate,
		&t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTransfer persists a transfer already applied to the in-memory
// ticket, guarded by the ticket still being valid.
func (r *Repository) SaveTransfer(ctx context.Context, t *domain.Ticket) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET assigned_to = $2, status = $3, transferred_from = $4,
		    transferred_to = $5, transferred_at = $6, transfer_reason = $7,
		    updated_at = $8
		WHERE id = $1 AND status = 'valid'
	`, t.ID, t.AssignedTo, t.Status, t.TransferredFrom, t.TransferredTo,
		t.TransferredAt, t.TransferReason, t.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// MarkTicketUsed records a scan, guarded against double entry.
func (r *Repository) MarkTicketUsed(ctx context.Context, id uuid.UUID, usedBy uuid.UUID, gate string, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET status = 'used', used_at = $2, used_by = $3, entry_gate = $4, updated_at = $2
		WHERE id = $1 AND status = 'valid'
	`, id, now, usedBy, gate)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ExpireTickets sweeps valid tickets past their validity window, plus
// tickets of events that ended more than 24h ago with no explicit window.
// Both updates are idempotent.
func (r *Repository) ExpireTickets(ctx context.Context, now time.Time) (int64, error) {
	windowed, err := r.pool.Exec(ctx, `
		UPDATE tickets SET status = 'expired', updated_at = $1
		WHERE status = 'valid' AND valid_until IS NOT NULL AND valid_until < $1
	`, now)
	if err != nil {
		return 0, err
	}

	ended, err := r.pool.Exec(ctx, `
		UPDATE tickets SET status = 'expired', updated_at = $1
		FROM events
		WHERE tickets.event_id = events.id
		  AND tickets.status = 'valid'
		  AND tickets.valid_until IS NULL
		  AND events.ends_at < $2
	`, now, now.Add(-24*time.Hour))
	if err != nil {
		return windowed.RowsAffected(), err
	}
	return windowed.RowsAffected() + ended.RowsAffected(), nil
}

// CancelTicketsForBooking sweeps a cancelled or refunded booking's tickets.
func (r *Repository) CancelTicketsForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE tickets SET status = 'cancelled', updated_at = $2
		WHERE booking_id = $1 AND status = 'valid'
	`, bookingID, now)
	return err
}
