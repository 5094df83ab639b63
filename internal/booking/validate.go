package booking

import (
	"fmt"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RequestLine struct {
	TicketType string `json:"ticket_type"`
	Quantity   int    `json:"quantity"`
}

// Request is what the client sends. Prices are deliberately absent: unit
// prices, subtotal and total are always computed server-side from the
// event's stored ticket-type configuration.
type Request struct {
	UserID      uuid.UUID     `json:"user_id"`
	EventID     uuid.UUID     `json:"event_id"`
	Lines       []RequestLine `json:"lines"`
	HolderName  string        `json:"holder_name"`
	HolderEmail string        `json:"holder_email"`
}

// Validate runs every synchronous booking check and prices the booking
// from stored configuration. Capacity is checked softly here; the
// authoritative check is the atomic reservation at persist time, which
// reports losses through an identical capacity reason.
func Validate(event *domain.Event, existing *domain.Booking, req Request, serviceFeeRate decimal.Decimal, now time.Time) (*domain.Booking, error) {
	ve := &domain.ValidationError{}

	if event == nil {
		ve.Add("event not found")
		return nil, ve
	}
	if event.Status != domain.EventPublished {
		ve.Add("event is not open for booking")
	}
	if event.StartsAt.Before(now) {
		ve.Add("event has already taken place")
	}
	if len(req.Lines) == 0 {
		ve.Add("at least one ticket line is required")
	}

	if existing != nil && existing.Live(now) {
		ve.Add(fmt.Sprintf("a pending booking already exists for this event (reference %s)", existing.Reference))
	}

	subtotal := decimal.Zero
	total := 0
	lines := make([]domain.BookingLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		tt, ok := event.TicketType(line.TicketType)
		if !ok {
			ve.Add(fmt.Sprintf("ticket type %q does not exist for this event", line.TicketType))
			continue
		}
		if line.Quantity < 1 {
			ve.Add(fmt.Sprintf("quantity for %q must be at least 1", line.TicketType))
			continue
		}
		if tt.MaxPerOrder > 0 && line.Quantity > tt.MaxPerOrder {
			ve.Add(fmt.Sprintf("quantity for %q exceeds the limit of %d per order", line.TicketType, tt.MaxPerOrder))
		}
		if tt.SaleStart != nil && now.Before(*tt.SaleStart) {
			ve.Add(fmt.Sprintf("sales for %q haven't started yet", line.TicketType))
		} else if tt.SaleEnd != nil && now.After(*tt.SaleEnd) {
			ve.Add(fmt.Sprintf("sales for %q have ended", line.TicketType))
		}
		if tt.Issued+line.Quantity > tt.Quantity {
			ve.Add(fmt.Sprintf("not enough %q tickets remaining", line.TicketType))
		}

		total += line.Quantity
		subtotal = subtotal.Add(tt.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		lines = append(lines, domain.BookingLine{
			TicketType: tt.Name,
			Quantity:   line.Quantity,
			UnitPrice:  tt.Price,
		})
	}

	if event.TicketsSold+total > event.Capacity {
		ve.Add("event capacity exceeded")
	}

	if ve.HasReasons() {
		return nil, ve
	}

	fee := subtotal.Mul(serviceFeeRate).Div(decimal.NewFromInt(100)).Round(2)
	return &domain.Booking{
		ID:            uuid.New(),
		Reference:     domain.NewBookingReference(),
		UserID:        req.UserID,
		EventID:       event.ID,
		Lines:         lines,
		Subtotal:      subtotal,
		ServiceFee:    fee,
		Total:         subtotal.Add(fee),
		Currency:      event.Currency,
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
		HolderName:    req.HolderName,
		HolderEmail:   req.HolderEmail,
		ExpiresAt:     now.Add(domain.PendingBookingTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
