package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eventhive/ticketing/internal/adapters/pg"
	"github.com/eventhive/ticketing/internal/commission"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RequestRefund opens a refund request against a paid booking. Only one
// non-terminal request may exist per booking; the database enforces that
// and the conflict surfaces as a validation reason.
func (s *Service) RequestRefund(ctx context.Context, bookingID, userID uuid.UUID, amount decimal.Decimal, reason string) (*domain.RefundRequest, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	ve := &domain.ValidationError{}
	if b.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if b.Status != domain.BookingConfirmed || b.PaymentStatus != domain.PaymentPaid {
		ve.Add("only paid bookings can be refunded")
	}
	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(b.Total) {
		ve.Add("refund amount must be positive and no more than the booking total")
	}
	if ve.HasReasons() {
		return nil, ve
	}

	now := time.Now()
	req := &domain.RefundRequest{
		ID:              uuid.New(),
		BookingID:       b.ID,
		UserID:          userID,
		RequestedAmount: amount,
		ApprovedAmount:  decimal.Zero,
		Currency:        b.Currency,
		Status:          domain.RefundPending,
		Reason:          reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		refunded, err := s.repo.SumRefundedForBooking(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(b.Total.Sub(refunded)) {
			return &domain.ValidationError{Reasons: []string{"refund amount exceeds what is still refundable for this booking"}}
		}
		return s.repo.InsertRefundRequest(ctx, tx, req)
	})
	if err == domain.ErrConflict {
		return nil, &domain.ValidationError{Reasons: []string{"a refund request is already open for this booking"}}
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ReviewRefund records an admin decision on a pending request.
func (s *Service) ReviewRefund(ctx context.Context, requestID, reviewerID uuid.UUID, approve bool, approvedAmount decimal.Decimal, notes string) (*domain.RefundRequest, error) {
	req, err := s.repo.GetRefundRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	from := req.Status

	if approve {
		if approvedAmount.LessThanOrEqual(decimal.Zero) || approvedAmount.GreaterThan(req.RequestedAmount) {
			return nil, &domain.ValidationError{Reasons: []string{"approved amount must be positive and no more than the requested amount"}}
		}
		req.Status = domain.RefundApproved
		req.ApprovedAmount = approvedAmount
	} else {
		req.Status = domain.RefundRejected
	}
	req.ReviewerID = &reviewerID
	req.ReviewNotes = notes
	req.UpdatedAt = time.Now()

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		return s.repo.SaveRefundTransition(ctx, tx, req, from)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ProcessRefund executes an approved refund: apportions commission
// proportionally (the gateway fee is never recovered), writes the negated
// refund transaction, and once refunds exhaust the sale cancels the
// booking's tickets. The approved amount is bounded by what earlier
// refunds left refundable, so a booking can never be refunded past its
// original gross.
func (s *Service) ProcessRefund(ctx context.Context, requestID uuid.UUID) (*domain.Transaction, error) {
	req, err := s.repo.GetRefundRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RefundApproved {
		return nil, domain.ErrInvalidTransition
	}

	original, err := s.repo.GetCompletedSaleForBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var refundTx domain.Transaction

	err = s.withRetry(ctx, func(tx pgx.Tx) error {
		// The already-refunded total is read inside the transaction, so two
		// refunds racing on one booking cannot both fit under the gross.
		refunded, err := s.repo.SumRefundedForBooking(ctx, tx, req.BookingID)
		if err != nil {
			return err
		}
		breakdown, err := commission.Apportion(original, req.ApprovedAmount, refunded)
		if err == domain.ErrInvalidInput {
			return &domain.ValidationError{Reasons: []string{"approved amount exceeds what is still refundable for this booking"}}
		}
		if err != nil {
			return err
		}
		refundTx = commission.RefundTransaction(original, breakdown, req.Reason, now)

		saved := *req
		saved.Status = domain.RefundProcessed
		saved.UpdatedAt = now
		if err := s.repo.SaveRefundTransition(ctx, tx, &saved, domain.RefundApproved); err != nil {
			return err
		}
		if err := s.repo.InsertTransaction(ctx, tx, &refundTx); err != nil {
			return err
		}
		if !breakdown.IsPartial {
			if err := s.repo.UpdateBookingStatus(ctx, tx, req.BookingID, domain.BookingConfirmed, domain.BookingRefunded, domain.PaymentPaid, now); err != nil {
				return err
			}
			if err := s.repo.CancelTicketsForBooking(ctx, tx, req.BookingID, now); err != nil {
				return err
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"booking_id": req.BookingID,
			"request_id": req.ID,
			"amount":     breakdown.Amount,
			"is_partial": breakdown.IsPartial,
		})
		return s.repo.InsertOutbox(ctx, tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "refund",
			AggregateID:   req.ID,
			EventType:     "refund.processed",
			Payload:       payload,
			DedupeKey:     "refund-processed:" + req.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.LogRefundProcessed(ctx, req, &refundTx); err != nil {
		s.logger.WithField("refund_request", req.ID.String()).Error("audit write failed", err)
	}
	return &refundTx, nil
}
