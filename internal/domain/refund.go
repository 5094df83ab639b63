package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundReviewing RefundStatus = "reviewing"
	RefundApproved  RefundStatus = "approved"
	RefundRejected  RefundStatus = "rejected"
	RefundProcessed RefundStatus = "processed"
	RefundCancelled RefundStatus = "cancelled"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundPending:   {RefundReviewing, RefundApproved, RefundRejected, RefundCancelled},
	RefundReviewing: {RefundApproved, RefundRejected, RefundCancelled},
	RefundApproved:  {RefundProcessed, RefundCancelled},
	RefundRejected:  {},
	RefundProcessed: {},
	RefundCancelled: {},
}

func (s RefundStatus) CanTransitionTo(to RefundStatus) bool {
	for _, next := range refundTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s RefundStatus) IsTerminal() bool {
	return len(refundTransitions[s]) == 0
}

// RefundRequest is a customer-initiated reversal of part or all of a
// booking's payment. Only one non-terminal request may exist per booking.
type RefundRequest struct {
	ID              uuid.UUID
	BookingID       uuid.UUID
	UserID          uuid.UUID
	RequestedAmount decimal.Decimal
	ApprovedAmount  decimal.Decimal
	Currency        string
	Status          RefundStatus
	Reason          string
	ReviewerID      *uuid.UUID
	ReviewNotes     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
