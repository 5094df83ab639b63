package settlement_test

import (
	"testing"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/settlement"
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

func sale(amount, comm, fee string) domain.Transaction {
	return domain.Transaction{
		ID:               uuid.New(),
		Type:             domain.TxTicketSale,
		Status:           domain.TxCompleted,
		Amount:           dec(amount),
		CommissionAmount: dec(comm),
		GatewayFee:       dec(fee),
		NetAmount:        dec(amount).Sub(dec(comm)).Sub(dec(fee)),
	}
}

func refund(amount, comm string) domain.Transaction {
	return domain.Transaction{
		ID:               uuid.New(),
		Type:             domain.TxRefund,
		Status:           domain.TxCompleted,
		Amount:           dec(amount).Neg(),
		CommissionAmount: dec(comm).Neg(),
		GatewayFee:       decimal.Zero,
		NetAmount:        dec(amount).Sub(dec(comm)).Neg(),
	}
}

func TestAggregate(t *testing.T) {
	txs := []domain.Transaction{
		sale("1000", "100", "29"),
		sale("2000", "200", "58"),
		refund("500", "50"),
		{Type: domain.TxTicketSale, Status: domain.TxPending, Amount: dec("9999")},  // ignored
		{Type: domain.TxPayout, Status: domain.TxCompleted, Amount: dec("1234")},    // ignored
		{Type: domain.TxTicketSale, Status: domain.TxFailed, Amount: dec("777")},    // ignored
	}

	s := settlement.Aggregate(txs)

	if !s.GrossRevenue.Equal(dec("3000")) {
		t.Errorf("gross = %s, want 3000", s.GrossRevenue)
	}
	if !s.TotalRefunds.Equal(dec("500")) {
		t.Errorf("refunds = %s, want 500", s.TotalRefunds)
	}
	if !s.AdjustedRevenue.Equal(dec("2500")) {
		t.Errorf("adjusted = %s, want 2500", s.AdjustedRevenue)
	}
	if !s.TotalCommission.Equal(dec("250")) {
		t.Errorf("commission = %s, want 250", s.TotalCommission)
	}
	if !s.TotalGatewayFees.Equal(dec("87")) {
		t.Errorf("fees = %s, want 87", s.TotalGatewayFees)
	}
	// 871 + 1742 - 450
	if !s.NetRevenue.Equal(dec("2163")) {
		t.Errorf("net = %s, want 2163", s.NetRevenue)
	}
	if len(s.TransactionIDs) != 3 {
		t.Errorf("linked %d transactions, want 3", len(s.TransactionIDs))
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	txs := []domain.Transaction{sale("1000", "100", "29"), refund("100", "10")}
	first := settlement.Aggregate(txs)
	second := settlement.Aggregate(txs)
	if !first.NetRevenue.Equal(second.NetRevenue) || !first.AdjustedRevenue.Equal(second.AdjustedRevenue) {
		t.Error("recomputation changed the numbers")
	}
}

func TestNewPayout_NetIdentity(t *testing.T) {
	s := settlement.Aggregate([]domain.Transaction{
		sale("1000", "100", "29"),
		sale("2000", "200", "58"),
		refund("500", "50"),
	})
	p := settlement.NewPayout(uuid.New(), s, "KES", time.Now())

	expected := p.GrossAmount.Sub(p.Commission).Sub(p.ProcessingFee)
	if expected.Sub(p.NetAmount).Abs().GreaterThan(dec("0.01")) {
		t.Errorf("net = %s, want %s", p.NetAmount, expected)
	}
	// Commission is the platform's cut only, net of the refund clawback.
	if !p.Commission.Equal(dec("250")) {
		t.Errorf("commission = %s, want 250", p.Commission)
	}
	// 87 of sale-time gateway fees plus the 1.5% transfer fee on the
	// 2163 payable balance.
	if !p.ProcessingFee.Equal(dec("119.45")) {
		t.Errorf("processing fee = %s, want 119.45", p.ProcessingFee)
	}
	if p.Status != domain.PayoutPending {
		t.Errorf("status = %s, want pending", p.Status)
	}
	if len(p.TransactionIDs) != 3 {
		t.Errorf("linked %d transactions, want 3", len(p.TransactionIDs))
	}
}
