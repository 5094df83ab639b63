package pg

import (
	"context"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var e domain.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, organizer_id, name, status, starts_at, ends_at, capacity,
		       tickets_sold, currency, platform_fee_percent, commission_rate,
		       commission_type, qr_secret
		FROM events WHERE id = $1
	`, id).Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Status, &e.StartsAt, &e.EndsAt,
		&e.Capacity, &e.TicketsSold, &e.Currency, &e.PlatformFeePercent,
		&e.CommissionRate, &e.CommissionType, &e.QRSecret)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT name, price, quantity, issued, max_per_order, sale_start,
		       sale_end, transferable
		FROM ticket_types WHERE event_id = $1 ORDER BY name
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tt domain.TicketType
		if err := rows.Scan(&tt.Name, &tt.Price, &tt.Quantity, &tt.Issued,
			&tt.MaxPerOrder, &tt.SaleStart, &tt.SaleEnd, &tt.Transferable); err != nil {
			return nil, err
		}
		e.TicketTypes = append(e.TicketTypes, tt)
	}
	return &e, rows.Err()
}

func (r *Repository) GetOrganizer(ctx context.Context, id uuid.UUID) (*domain.Organizer, error) {
	var o domain.Organizer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, commission_rate, tickets_sold
		FROM organizers WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.CommissionRate, &o.TicketsSold)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
