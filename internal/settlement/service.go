package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eventhive/ticketing/internal/adapters/mongo"
	"github.com/eventhive/ticketing/internal/adapters/pg"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/gateway"
	"github.com/eventhive/ticketing/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Service struct {
	repo   *pg.Repository
	gw     gateway.Client
	audit  *mongo.AuditLogger
	logger observability.Logger
}

func NewService(repo *pg.Repository, gw gateway.Client, audit *mongo.AuditLogger, logger observability.Logger) *Service {
	return &Service{repo: repo, gw: gw, audit: audit, logger: logger}
}

// RequestPayout aggregates the organizer's unsettled completed
// transactions for the period into a pending payout and links them to it.
// Linking and the payout insert share one transaction, so a transaction is
// claimed by at most one payout.
func (s *Service) RequestPayout(ctx context.Context, organizerID uuid.UUID, from, to time.Time) (*domain.Payout, error) {
	if _, err := s.repo.GetOrganizer(ctx, organizerID); err != nil {
		return nil, err
	}

	txs, err := s.repo.ListSettleable(ctx, organizerID, from, to)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, &domain.ValidationError{Reasons: []string{"no settleable transactions in the requested period"}}
	}

	summary := Aggregate(txs)
	if summary.NetRevenue.LessThanOrEqual(decimal.Zero) {
		return nil, &domain.ValidationError{Reasons: []string{"payable balance for the period is not positive"}}
	}

	now := time.Now()
	p := NewPayout(organizerID, summary, txs[0].Currency, now)

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.InsertPayout(ctx, tx, &p); err != nil {
			return err
		}
		if err := s.repo.LinkToPayout(ctx, tx, p.ID, p.TransactionIDs); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"payout_id":    p.ID,
			"organizer_id": organizerID,
			"net_amount":   p.NetAmount,
			"currency":     p.Currency,
		})
		return s.repo.InsertOutbox(ctx, tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "payout",
			AggregateID:   p.ID,
			EventType:     "payout.requested",
			Payload:       payload,
			DedupeKey:     "payout-requested:" + p.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.LogEvent(ctx, "payout.requested", organizerID, map[string]interface{}{
		"payout_id":  p.ID.String(),
		"net_amount": p.NetAmount.String(),
	}); err != nil {
		s.logger.WithField("payout", p.ID.String()).Error("audit write failed", err)
	}
	return &p, nil
}

// Review records an admin decision on a pending payout.
func (s *Service) Review(ctx context.Context, payoutID, reviewerID uuid.UUID, approve bool, reason string) (*domain.Payout, error) {
	p, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	from := p.Status

	now := time.Now()
	to := domain.PayoutApproved
	if !approve {
		to = domain.PayoutRejected
		p.FailureReason = reason
	}
	if err := Transition(p, to, now); err != nil {
		return nil, err
	}
	if err := s.repo.SavePayoutTransition(ctx, p, from); err != nil {
		return nil, err
	}

	if err := s.audit.LogPayoutTransition(ctx, p, from); err != nil {
		s.logger.WithField("payout", p.ID.String()).Error("audit write failed", err)
	}
	return p, nil
}

// Fail is the manual admin override: any non-terminal payout can be
// forced to failed, e.g. after an out-of-band provider investigation.
func (s *Service) Fail(ctx context.Context, payoutID, reviewerID uuid.UUID, reason string) (*domain.Payout, error) {
	p, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	from := p.Status

	p.FailureReason = reason
	if err := Transition(p, domain.PayoutFailed, time.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.SavePayoutTransition(ctx, p, from); err != nil {
		return nil, err
	}

	if err := s.audit.LogPayoutTransition(ctx, p, from); err != nil {
		s.logger.WithField("payout", p.ID.String()).Error("audit write failed", err)
	}
	return p, nil
}

// Dispatch initiates the provider transfer for an approved payout and
// moves it to processing. If the provider call fails the payout stays
// approved and a later dispatch retries it.
func (s *Service) Dispatch(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	p, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PayoutApproved {
		return nil, domain.ErrInvalidTransition
	}

	ref, err := s.gw.InitiateTransfer(ctx, "PO-"+p.ID.String(), p.NetAmount, p.Currency)
	if err != nil {
		return nil, err
	}

	from := p.Status
	now := time.Now()
	p.ProcessorRef = ref
	if err := Transition(p, domain.PayoutProcessing, now); err != nil {
		return nil, err
	}
	if err := s.repo.SavePayoutTransition(ctx, p, from); err != nil {
		return nil, err
	}

	if err := s.audit.LogPayoutTransition(ctx, p, from); err != nil {
		s.logger.WithField("payout", p.ID.String()).Error("audit write failed", err)
	}
	return p, nil
}
