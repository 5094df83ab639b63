package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutApproved   PayoutStatus = "approved"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutRejected   PayoutStatus = "rejected"
	PayoutExpired    PayoutStatus = "expired"
)

// Forward transitions are monotonic; failed is reachable from any
// non-terminal state via manual override.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutApproved, PayoutRejected, PayoutExpired, PayoutFailed},
	PayoutApproved:   {PayoutProcessing, PayoutFailed},
	PayoutProcessing: {PayoutCompleted, PayoutFailed},
	PayoutCompleted:  {},
	PayoutFailed:     {},
	PayoutRejected:   {},
	PayoutExpired:    {},
}

func (s PayoutStatus) CanTransitionTo(to PayoutStatus) bool {
	for _, next := range payoutTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PayoutStatus) IsTerminal() bool {
	return len(payoutTransitions[s]) == 0
}

type Payout struct {
	ID          uuid.UUID
	OrganizerID uuid.UUID

	GrossAmount   decimal.Decimal
	Commission    decimal.Decimal
	ProcessingFee decimal.Decimal
	NetAmount     decimal.Decimal
	Currency      string

	Status         PayoutStatus
	TransactionIDs []uuid.UUID
	ProcessorRef   string
	FailureReason  string

	RequestedAt    time.Time
	ApprovedAt     *time.Time
	ProcessedAt    *time.Time
	CompletedAt    *time.Time
	StuckFlaggedAt *time.Time
}
