package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxTicketSale TransactionType = "ticket_sale"
	TxRefund     TransactionType = "refund"
	TxPayout     TransactionType = "payout"
	TxCommission TransactionType = "commission"
	TxFee        TransactionType = "fee"
	TxWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TxPending    TransactionStatus = "pending"
	TxProcessing TransactionStatus = "processing"
	TxCompleted  TransactionStatus = "completed"
	TxFailed     TransactionStatus = "failed"
	TxCancelled  TransactionStatus = "cancelled"
	TxReversed   TransactionStatus = "reversed"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TxPending:    {TxProcessing, TxCompleted, TxFailed, TxCancelled},
	TxProcessing: {TxCompleted, TxFailed, TxCancelled},
	TxCompleted:  {TxReversed},
	TxFailed:     {},
	TxCancelled:  {},
	TxReversed:   {},
}

func (s TransactionStatus) CanTransitionTo(to TransactionStatus) bool {
	for _, next := range transactionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transaction is an immutable ledger entry for one monetary movement. Once
// completed its amounts are never mutated; corrections are paired reversal
// or refund rows linked through RelatedTxID.
type Transaction struct {
	ID          uuid.UUID
	Type        TransactionType
	BookingID   *uuid.UUID
	OrganizerID *uuid.UUID
	UserID      *uuid.UUID
	PayoutID    *uuid.UUID
	RelatedTxID *uuid.UUID

	Amount           decimal.Decimal
	CommissionAmount decimal.Decimal
	GatewayFee       decimal.Decimal
	NetAmount        decimal.Decimal
	Currency         string

	Gateway       string
	PaymentMethod string
	GatewayRef    string

	Status TransactionStatus
	Reason string

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// SettlementConsistent verifies net = amount - commission - gateway fee
// within a one-cent rounding tolerance.
func (t *Transaction) SettlementConsistent() bool {
	expected := t.Amount.Sub(t.CommissionAmount).Sub(t.GatewayFee)
	return expected.Sub(t.NetAmount).Abs().LessThanOrEqual(decimal.NewFromFloat(0.01))
}
