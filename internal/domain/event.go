package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event and its ticket types are configuration owned by the excluded CRUD
// layer. The core reads them and never writes anything but the running
// sold/reserved counters.

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

type CommissionType string

const (
	CommissionPercentage CommissionType = "percentage"
	CommissionFixed      CommissionType = "fixed"
)

type Event struct {
	ID          uuid.UUID
	OrganizerID uuid.UUID
	Name        string
	Status      EventStatus
	StartsAt    time.Time
	EndsAt      time.Time
	Capacity    int
	TicketsSold int
	Currency    string

	// Commission configuration, consulted in precedence order by the
	// commission resolver. Nil means "not set".
	PlatformFeePercent *decimal.Decimal
	CommissionRate     *decimal.Decimal
	CommissionType     CommissionType

	// QRSecret signs ticket hashes and QR payloads for this event.
	QRSecret []byte

	TicketTypes []TicketType
}

func (e *Event) TicketType(name string) (*TicketType, bool) {
	for i := range e.TicketTypes {
		if e.TicketTypes[i].Name == name {
			return &e.TicketTypes[i], true
		}
	}
	return nil, false
}

type TicketType struct {
	Name         string
	Price        decimal.Decimal
	Quantity     int
	Issued       int
	MaxPerOrder  int
	SaleStart    *time.Time
	SaleEnd      *time.Time
	Transferable bool
}

// OnSale reports whether the sale window, when configured, contains now.
func (t *TicketType) OnSale(now time.Time) bool {
	if t.SaleStart != nil && now.Before(*t.SaleStart) {
		return false
	}
	if t.SaleEnd != nil && now.After(*t.SaleEnd) {
		return false
	}
	return true
}

type Organizer struct {
	ID             uuid.UUID
	Name           string
	CommissionRate *decimal.Decimal
	TicketsSold    int64
}
