package domain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketValid       TicketStatus = "valid"
	TicketUsed        TicketStatus = "used"
	TicketTransferred TicketStatus = "transferred"
	TicketCancelled   TicketStatus = "cancelled"
	TicketExpired     TicketStatus = "expired"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketValid:       {TicketUsed, TicketTransferred, TicketCancelled, TicketExpired},
	TicketUsed:        {},
	TicketTransferred: {},
	TicketCancelled:   {},
	TicketExpired:     {},
}

func (s TicketStatus) CanTransitionTo(to TicketStatus) bool {
	for _, next := range ticketTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Ticket struct {
	ID          uuid.UUID
	Code        string
	Hash        string
	BookingID   uuid.UUID
	EventID     uuid.UUID
	LineSeq     int
	TicketType  string
	Price       decimal.Decimal
	Currency    string
	HolderName  string
	HolderEmail string
	AssignedTo  uuid.UUID
	Status      TicketStatus

	ValidFrom  *time.Time
	ValidUntil *time.Time

	TransferredFrom *uuid.UUID
	TransferredTo   *uuid.UUID
	TransferredAt   *time.Time
	TransferReason  string

	UsedAt    *time.Time
	UsedBy    *uuid.UUID
	EntryGate string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTicketCode() string {
	buf := make([]byte, 6)
	rand.Read(buf)
	return "TKT-" + strings.ToUpper(hex.EncodeToString(buf))
}

// TicketHash is a keyed hash over the ticket code and event id, using the
// per-event secret. Stored with the ticket so a forged code can be detected
// without re-deriving anything from the database.
func TicketHash(code string, eventID uuid.UUID, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(code))
	mac.Write([]byte(eventID.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
