package settlement

import (
	"time"

	"github.com/eventhive/ticketing/internal/commission"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodSummary is the pure aggregation of an organizer's completed
// transactions over a period. Recomputing over the same transaction set
// yields the same numbers; nothing here has side effects.
type PeriodSummary struct {
	GrossRevenue     decimal.Decimal
	TotalRefunds     decimal.Decimal
	AdjustedRevenue  decimal.Decimal
	TotalCommission  decimal.Decimal
	TotalGatewayFees decimal.Decimal
	NetRevenue       decimal.Decimal
	Gateway          string
	TransactionIDs   []uuid.UUID
}

// Aggregate folds completed ticket sales and refunds into the organizer's
// payable balance for the period. Refund rows are stored negated, so their
// absolute values are subtracted from the forward sums.
func Aggregate(txs []domain.Transaction) PeriodSummary {
	s := PeriodSummary{
		GrossRevenue:     decimal.Zero,
		TotalRefunds:     decimal.Zero,
		AdjustedRevenue:  decimal.Zero,
		TotalCommission:  decimal.Zero,
		TotalGatewayFees: decimal.Zero,
		NetRevenue:       decimal.Zero,
	}
	for _, tx := range txs {
		if tx.Status != domain.TxCompleted {
			continue
		}
		switch tx.Type {
		case domain.TxTicketSale:
			if s.Gateway == "" {
				s.Gateway = tx.Gateway
			}
			s.GrossRevenue = s.GrossRevenue.Add(tx.Amount)
			s.TotalCommission = s.TotalCommission.Add(tx.CommissionAmount)
			s.TotalGatewayFees = s.TotalGatewayFees.Add(tx.GatewayFee)
			s.NetRevenue = s.NetRevenue.Add(tx.NetAmount)
			s.TransactionIDs = append(s.TransactionIDs, tx.ID)
		case domain.TxRefund:
			s.TotalRefunds = s.TotalRefunds.Add(tx.Amount.Abs())
			s.TotalCommission = s.TotalCommission.Sub(tx.CommissionAmount.Abs())
			s.NetRevenue = s.NetRevenue.Sub(tx.NetAmount.Abs())
			s.TransactionIDs = append(s.TransactionIDs, tx.ID)
		}
	}
	s.AdjustedRevenue = s.GrossRevenue.Sub(s.TotalRefunds)
	return s
}

// NewPayout turns a period summary into a disbursement request.
// Commission is the platform's cut net of refund clawbacks; the processing
// fee is the sale-time gateway fees plus the transfer channel's cut of the
// payable balance. gross/commission/fee/net satisfy
// net = gross - commission - fee.
func NewPayout(organizerID uuid.UUID, s PeriodSummary, currency string, now time.Time) domain.Payout {
	transferFee, _ := commission.GatewayFee(s.Gateway, "bank_transfer", s.NetRevenue)
	fees := s.TotalGatewayFees.Add(transferFee)
	return domain.Payout{
		ID:             uuid.New(),
		OrganizerID:    organizerID,
		GrossAmount:    s.AdjustedRevenue,
		Commission:     s.TotalCommission,
		ProcessingFee:  fees,
		NetAmount:      s.AdjustedRevenue.Sub(s.TotalCommission).Sub(fees),
		Currency:       currency,
		Status:         domain.PayoutPending,
		TransactionIDs: s.TransactionIDs,
		RequestedAt:    now,
	}
}
