package commission_test

import (
	"testing"
	"time"

	"github.com/eventhive/ticketing/internal/commission"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedSale() *domain.Transaction {
	bookingID := uuid.New()
	now := time.Now()
	return &domain.Transaction{
		ID:               uuid.New(),
		Type:             domain.TxTicketSale,
		BookingID:        &bookingID,
		Amount:           dec("2000"),
		CommissionAmount: dec("200"),
		GatewayFee:       dec("58"),
		NetAmount:        dec("1742"),
		Currency:         "KES",
		Gateway:          "flutterwave",
		PaymentMethod:    "card",
		Status:           domain.TxCompleted,
		CreatedAt:        now,
		CompletedAt:      &now,
	}
}

func TestApportion_FullRefund(t *testing.T) {
	original := completedSale()

	b, err := commission.Apportion(original, dec("2000"), decimal.Zero)
	require.NoError(t, err)

	assert.False(t, b.IsPartial)
	assert.True(t, b.CommissionRefund.Equal(dec("200")), "commission refund %s", b.CommissionRefund)
	assert.True(t, b.GatewayFeeRefund.IsZero(), "gateway fee is never returned")
	assert.True(t, b.NetRefund.Equal(dec("1800")), "net refund %s", b.NetRefund)

	// Conservation: the refunded amount splits exactly into the returned
	// commission and the net clawed back from the organizer.
	assert.True(t, b.NetRefund.Add(b.CommissionRefund).Equal(original.Amount))
}

func TestApportion_PartialRefund(t *testing.T) {
	original := completedSale()

	b, err := commission.Apportion(original, dec("500"), decimal.Zero)
	require.NoError(t, err)

	assert.True(t, b.IsPartial)
	// 200 * 500/2000 = 50
	assert.True(t, b.CommissionRefund.Equal(dec("50")), "commission refund %s", b.CommissionRefund)
	assert.True(t, b.NetRefund.Equal(dec("450")), "net refund %s", b.NetRefund)
}

func TestApportion_Bounds(t *testing.T) {
	original := completedSale()

	_, err := commission.Apportion(original, dec("2000.01"), decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = commission.Apportion(original, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = commission.Apportion(original, dec("100"), dec("-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	pending := completedSale()
	pending.Status = domain.TxPending
	_, err = commission.Apportion(pending, dec("100"), decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApportion_CumulativeBound(t *testing.T) {
	original := completedSale()

	// First partial refund of 1500 against the 2000 sale goes through.
	b, err := commission.Apportion(original, dec("1500"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, b.IsPartial)

	// A second 1500 would take the cumulative total past the gross.
	_, err = commission.Apportion(original, dec("1500"), dec("1500"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// The remaining 500 is fine and exhausts the sale.
	b, err = commission.Apportion(original, dec("500"), dec("1500"))
	require.NoError(t, err)
	assert.False(t, b.IsPartial, "a refund that exhausts the gross is full, not partial")
}

func TestRefundTransaction_Negated(t *testing.T) {
	original := completedSale()
	b, err := commission.Apportion(original, dec("500"), decimal.Zero)
	require.NoError(t, err)

	tx := commission.RefundTransaction(original, b, "customer request", time.Now())

	assert.Equal(t, domain.TxRefund, tx.Type)
	assert.Equal(t, domain.TxCompleted, tx.Status)
	require.NotNil(t, tx.RelatedTxID)
	assert.Equal(t, original.ID, *tx.RelatedTxID)
	assert.True(t, tx.Amount.Equal(dec("-500")))
	assert.True(t, tx.CommissionAmount.Equal(dec("-50")))
	assert.True(t, tx.GatewayFee.IsZero())
	assert.True(t, tx.NetAmount.Equal(dec("-450")))
	assert.Equal(t, "customer request", tx.Reason)
}
