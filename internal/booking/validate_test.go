package booking_test

import (
	"strings"
	"testing"
	"time"

	"github.com/eventhive/ticketing/internal/booking"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func publishedEvent() *domain.Event {
	return &domain.Event{
		ID:       uuid.New(),
		Status:   domain.EventPublished,
		StartsAt: time.Now().Add(7 * 24 * time.Hour),
		Capacity: 100,
		Currency: "KES",
		TicketTypes: []domain.TicketType{
			{Name: "Regular", Price: dec("1000"), Quantity: 50, MaxPerOrder: 4},
			{Name: "VIP", Price: dec("5000"), Quantity: 10, MaxPerOrder: 2},
		},
	}
}

func reasonsContain(t *testing.T, err error, substr string) {
	t.Helper()
	ve, ok := domain.AsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, r := range ve.Reasons {
		if strings.Contains(r, substr) {
			return
		}
	}
	t.Errorf("no reason containing %q in %v", substr, ve.Reasons)
}

func TestValidate_ServerSidePricing(t *testing.T) {
	// The request type has no price fields at all; a tampering client
	// sending price=100 in the JSON body simply has nothing to bind to.
	event := publishedEvent()
	req := booking.Request{
		UserID:  uuid.New(),
		EventID: event.ID,
		Lines:   []booking.RequestLine{{TicketType: "Regular", Quantity: 2}},
	}

	b, err := booking.Validate(event, nil, req, decimal.Zero, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !b.Subtotal.Equal(dec("2000")) {
		t.Errorf("subtotal = %s, want 2000 (server price)", b.Subtotal)
	}
	if !b.Lines[0].UnitPrice.Equal(dec("1000")) {
		t.Errorf("unit price = %s, want stored 1000", b.Lines[0].UnitPrice)
	}
	if b.Status != domain.BookingPending || b.PaymentStatus != domain.PaymentUnpaid {
		t.Errorf("new booking state %s/%s", b.Status, b.PaymentStatus)
	}
}

func TestValidate_ServiceFee(t *testing.T) {
	event := publishedEvent()
	req := booking.Request{
		UserID: uuid.New(), EventID: event.ID,
		Lines: []booking.RequestLine{{TicketType: "Regular", Quantity: 1}},
	}
	b, err := booking.Validate(event, nil, req, dec("5"), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !b.ServiceFee.Equal(dec("50")) {
		t.Errorf("service fee = %s, want 50", b.ServiceFee)
	}
	if !b.Total.Equal(dec("1050")) {
		t.Errorf("total = %s, want 1050", b.Total)
	}
}

func TestValidate_Rejections(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		event  func() *domain.Event
		lines  []booking.RequestLine
		reason string
	}{
		{
			name: "unpublished event",
			event: func() *domain.Event {
				e := publishedEvent()
				e.Status = domain.EventDraft
				return e
			},
			lines:  []booking.RequestLine{{TicketType: "Regular", Quantity: 1}},
			reason: "not open for booking",
		},
		{
			name: "past event",
			event: func() *domain.Event {
				e := publishedEvent()
				e.StartsAt = now.Add(-time.Hour)
				return e
			},
			lines:  []booking.RequestLine{{TicketType: "Regular", Quantity: 1}},
			reason: "already taken place",
		},
		{
			name:   "unknown ticket type",
			event:  publishedEvent,
			lines:  []booking.RequestLine{{TicketType: "Backstage", Quantity: 1}},
			reason: `ticket type "Backstage" does not exist`,
		},
		{
			name:   "over max per order",
			event:  publishedEvent,
			lines:  []booking.RequestLine{{TicketType: "Regular", Quantity: 5}},
			reason: "exceeds the limit of 4",
		},
		{
			name: "sale not started",
			event: func() *domain.Event {
				e := publishedEvent()
				start := now.Add(5 * 24 * time.Hour)
				e.TicketTypes[1].SaleStart = &start
				return e
			},
			lines:  []booking.RequestLine{{TicketType: "VIP", Quantity: 1}},
			reason: `sales for "VIP" haven't started`,
		},
		{
			name: "sale ended",
			event: func() *domain.Event {
				e := publishedEvent()
				end := now.Add(-time.Hour)
				e.TicketTypes[0].SaleEnd = &end
				return e
			},
			lines:  []booking.RequestLine{{TicketType: "Regular", Quantity: 1}},
			reason: `sales for "Regular" have ended`,
		},
		{
			name: "ticket type sold out",
			event: func() *domain.Event {
				e := publishedEvent()
				e.TicketTypes[1].Issued = 9
				return e
			},
			lines:  []booking.RequestLine{{TicketType: "VIP", Quantity: 2}},
			reason: `not enough "VIP" tickets`,
		},
		{
			name: "event capacity exceeded",
			event: func() *domain.Event {
				e := publishedEvent()
				e.TicketsSold = 99
				return e
			},
			lines:  []booking.RequestLine{{TicketType: "Regular", Quantity: 2}},
			reason: "event capacity exceeded",
		},
		{
			name:   "empty lines",
			event:  publishedEvent,
			lines:  nil,
			reason: "at least one ticket line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := booking.Request{UserID: uuid.New(), Lines: tt.lines}
			_, err := booking.Validate(tt.event(), nil, req, decimal.Zero, now)
			if err == nil {
				t.Fatal("expected rejection")
			}
			reasonsContain(t, err, tt.reason)
		})
	}
}

func TestValidate_DuplicateBooking(t *testing.T) {
	now := time.Now()
	event := publishedEvent()
	req := booking.Request{
		UserID: uuid.New(), EventID: event.ID,
		Lines: []booking.RequestLine{{TicketType: "Regular", Quantity: 1}},
	}

	existing := &domain.Booking{
		Reference: "BK-aabbccdd01",
		Status:    domain.BookingPending,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	_, err := booking.Validate(event, existing, req, decimal.Zero, now)
	if err == nil {
		t.Fatal("expected rejection")
	}
	reasonsContain(t, err, "pending booking already exists")
	reasonsContain(t, err, existing.Reference)

	// A stale pending booking no longer blocks.
	existing.ExpiresAt = now.Add(-time.Minute)
	if _, err := booking.Validate(event, existing, req, decimal.Zero, now); err != nil {
		t.Errorf("stale pending booking should not block: %v", err)
	}

	// A confirmed booking always blocks.
	existing.Status = domain.BookingConfirmed
	if _, err := booking.Validate(event, existing, req, decimal.Zero, now); err == nil {
		t.Error("confirmed booking should block")
	}
}
