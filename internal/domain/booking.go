package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRefunded  BookingStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
)

// PendingBookingTTL is the abandonment cutoff: a pending booking older than
// this no longer blocks a new attempt and is swept to cancelled.
const PendingBookingTTL = 30 * time.Minute

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCancelled, BookingRefunded},
	BookingCancelled: {},
	BookingRefunded:  {},
}

func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

type BookingLine struct {
	TicketType string
	Quantity   int
	UnitPrice  decimal.Decimal
}

type Booking struct {
	ID            uuid.UUID
	Reference     string
	UserID        uuid.UUID
	EventID       uuid.UUID
	Lines         []BookingLine
	Subtotal      decimal.Decimal
	ServiceFee    decimal.Decimal
	Total         decimal.Decimal
	Currency      string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	HolderName    string
	HolderEmail   string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b *Booking) TotalQuantity() int {
	total := 0
	for _, line := range b.Lines {
		total += line.Quantity
	}
	return total
}

// Live reports whether the booking still blocks a new booking attempt for
// the same user and event.
func (b *Booking) Live(now time.Time) bool {
	switch b.Status {
	case BookingConfirmed:
		return true
	case BookingPending:
		return now.Before(b.ExpiresAt)
	default:
		return false
	}
}

func NewBookingReference() string {
	buf := make([]byte, 5)
	rand.Read(buf)
	return "BK-" + hex.EncodeToString(buf)
}
