package commission

import (
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RefundBreakdown struct {
	Amount           decimal.Decimal
	CommissionRefund decimal.Decimal
	GatewayFeeRefund decimal.Decimal
	NetRefund        decimal.Decimal
	IsPartial        bool
}

// Apportion splits a refund of amount against an original completed sale,
// where alreadyRefunded is the sum of refunds previously applied to it.
// Commission is returned proportionally; the gateway's processing fee is
// never recovered. Requires 0 < amount <= the gross not yet refunded, so
// successive partial refunds can never exceed the original sale.
func Apportion(original *domain.Transaction, amount, alreadyRefunded decimal.Decimal) (RefundBreakdown, error) {
	if original.Status != domain.TxCompleted {
		return RefundBreakdown{}, domain.ErrInvalidTransition
	}
	if alreadyRefunded.IsNegative() || amount.LessThanOrEqual(decimal.Zero) {
		return RefundBreakdown{}, domain.ErrInvalidInput
	}
	if amount.GreaterThan(original.Amount.Sub(alreadyRefunded)) {
		return RefundBreakdown{}, domain.ErrInvalidInput
	}

	ratio := amount.Div(original.Amount)
	commRefund := original.CommissionAmount.Mul(ratio).Round(2)
	return RefundBreakdown{
		Amount:           amount,
		CommissionRefund: commRefund,
		GatewayFeeRefund: decimal.Zero,
		NetRefund:        amount.Sub(commRefund),
		IsPartial:        alreadyRefunded.Add(amount).LessThan(original.Amount),
	}, nil
}

// RefundTransaction builds the ledger entry for a processed refund: every
// monetary field negated relative to the forward sale, linked to the
// original row and tagged with the refund reason.
func RefundTransaction(original *domain.Transaction, breakdown RefundBreakdown, reason string, now time.Time) domain.Transaction {
	origID := original.ID
	return domain.Transaction{
		ID:               uuid.New(),
		Type:             domain.TxRefund,
		BookingID:        original.BookingID,
		OrganizerID:      original.OrganizerID,
		UserID:           original.UserID,
		RelatedTxID:      &origID,
		Amount:           breakdown.Amount.Neg(),
		CommissionAmount: breakdown.CommissionRefund.Neg(),
		GatewayFee:       decimal.Zero,
		NetAmount:        breakdown.NetRefund.Neg(),
		Currency:         original.Currency,
		Gateway:          original.Gateway,
		PaymentMethod:    original.PaymentMethod,
		Status:           domain.TxCompleted,
		Reason:           reason,
		CreatedAt:        now,
		CompletedAt:      &now,
	}
}
