package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/eventhive/ticketing/internal/adapters/mongo"
	"github.com/eventhive/ticketing/internal/adapters/pg"
	"github.com/eventhive/ticketing/internal/commission"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/gateway"
	"github.com/eventhive/ticketing/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// maxTxRetries bounds re-runs after serialization failures. A genuine
// capacity loss resolves to a zero-row conditional update on retry, so
// the caller sees the same capacity error as any other sold-out request.
const maxTxRetries = 3

type Service struct {
	repo           *pg.Repository
	gw             gateway.Client
	audit          *mongo.AuditLogger
	logger         observability.Logger
	gatewayName    string
	serviceFeeRate decimal.Decimal
}

func NewService(repo *pg.Repository, gw gateway.Client, audit *mongo.AuditLogger, logger observability.Logger, gatewayName string, serviceFeeRate decimal.Decimal) *Service {
	return &Service{
		repo:           repo,
		gw:             gw,
		audit:          audit,
		logger:         logger,
		gatewayName:    gatewayName,
		serviceFeeRate: serviceFeeRate,
	}
}

func (s *Service) withRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.repo.WithTx(ctx, fn)
		if !errors.Is(err, domain.ErrSerializationFailure) {
			return err
		}
	}
	return err
}

// Create validates and persists a booking, reserving inventory
// atomically, then initialises a payment intent with the gateway.
func (s *Service) Create(ctx context.Context, req Request) (*domain.Booking, *gateway.PaymentIntent, error) {
	now := time.Now()

	var event *domain.Event
	var existing *domain.Booking
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		event, err = s.repo.GetEvent(gctx, req.EventID)
		if errors.Is(err, domain.ErrNotFound) {
			event = nil
			return nil
		}
		return err
	})
	g.Go(func() error {
		var err error
		existing, err = s.repo.GetLiveBooking(gctx, req.UserID, req.EventID)
		if errors.Is(err, domain.ErrNotFound) {
			existing = nil
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// A stale pending booking is swept out of the way instead of blocking
	// the new attempt.
	if existing != nil && existing.Status == domain.BookingPending && !existing.Live(now) {
		if err := s.repo.CancelExpiredBooking(ctx, existing, now); err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, nil, err
		}
		existing = nil
	}

	b, err := Validate(event, existing, req, s.serviceFeeRate, now)
	if err != nil {
		observability.BookingRejections.Inc()
		return nil, nil, err
	}

	err = s.withRetry(ctx, func(tx pgx.Tx) error {
		if err := s.repo.ReserveCapacity(ctx, tx, b.EventID, b.Lines); err != nil {
			return err
		}
		return s.repo.InsertBooking(ctx, tx, b)
	})
	if err != nil {
		if ve, ok := domain.AsValidation(err); ok {
			observability.CapacityConflicts.Inc()
			return nil, nil, ve
		}
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race with a concurrent request for the same event: the
			// unique index on live bookings caught what the pre-read missed.
			observability.BookingRejections.Inc()
			return nil, nil, &domain.ValidationError{Reasons: []string{"a live booking already exists for this event"}}
		}
		return nil, nil, err
	}
	observability.BookingsCreated.Inc()

	intent, err := s.gw.InitializePayment(ctx, b.Reference, b.Total, b.Currency)
	if err != nil {
		// The booking stays pending; the expiry sweep reclaims the
		// reservation if the client never retries payment.
		s.logger.WithField("booking", b.Reference).Error("payment initialization failed", err)
		return b, nil, errors.CombineErrors(domain.ErrGatewayUnavailable, err)
	}

	pending := &domain.Transaction{
		ID:          uuid.New(),
		Type:        domain.TxTicketSale,
		BookingID:   &b.ID,
		OrganizerID: &event.OrganizerID,
		UserID:      &b.UserID,
		Amount:      b.Total,
		Currency:    b.Currency,
		Gateway:     s.gatewayName,
		GatewayRef:  intent.GatewayRef,
		Status:      domain.TxPending,
		CreatedAt:   now,
	}
	if err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		return s.repo.InsertTransaction(ctx, tx, pending)
	}); err != nil {
		return nil, nil, err
	}
	if err := s.repo.MarkPaymentProcessing(ctx, b.ID, now); err != nil {
		return nil, nil, err
	}
	b.PaymentStatus = domain.PaymentProcessing

	return b, intent, nil
}

// Cancel lets the booking owner abandon a pending booking, releasing the
// reserved inventory.
func (s *Service) Cancel(ctx context.Context, bookingID, userID uuid.UUID) error {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.UserID != userID {
		return domain.ErrNotFound
	}
	if b.Status != domain.BookingPending {
		return domain.ErrInvalidTransition
	}
	return s.repo.CancelExpiredBooking(ctx, b, time.Now())
}

type Callback struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	GatewayRef    string `json:"gateway_ref"`
	PaymentMethod string `json:"payment_method"`
}

// HandlePaymentCallback folds a gateway callback into booking state. It is
// safe under at-least-once delivery: a booking that already has tickets is
// a no-op success, and ambiguous statuses change nothing.
func (s *Service) HandlePaymentCallback(ctx context.Context, cb Callback) error {
	b, err := s.repo.GetBookingByReference(ctx, cb.Reference)
	if err != nil {
		return err
	}

	switch cb.Status {
	case "success", "completed":
		return s.issue(ctx, b, cb)
	case "failed":
		return s.failPayment(ctx, b, cb)
	default:
		// Ambiguous gateway answer: no financial state transition.
		s.logger.WithField("booking", b.Reference).Warn("ignoring ambiguous gateway status ", cb.Status)
		return nil
	}
}

func (s *Service) failPayment(ctx context.Context, b *domain.Booking, cb Callback) error {
	now := time.Now()
	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		sale, err := s.repo.GetPendingSaleForBooking(ctx, tx, b.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.repo.FailTransaction(ctx, tx, sale.ID, "gateway reported failure", now)
	})
}

// issue performs the exactly-once ticket issuance for a paid booking.
func (s *Service) issue(ctx context.Context, b *domain.Booking, cb Callback) error {
	now := time.Now()

	event, err := s.repo.GetEvent(ctx, b.EventID)
	if err != nil {
		return err
	}
	organizer, err := s.repo.GetOrganizer(ctx, event.OrganizerID)
	if err != nil {
		return err
	}

	settle := commission.Settle(event, organizer, s.gatewayName, cb.PaymentMethod, b.Total)
	if !settle.KnownMethod {
		s.logger.WithField("booking", b.Reference).Warn("unrecognised payment method ", cb.PaymentMethod, ", applying card rate")
	}

	issued := false
	err = s.withRetry(ctx, func(tx pgx.Tx) error {
		issued = false
		count, err := s.repo.CountTicketsForBooking(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			// Duplicate delivery: tickets already exist, nothing to do.
			return nil
		}

		sale, err := s.repo.GetPendingSaleForBooking(ctx, tx, b.ID)
		if errors.Is(err, domain.ErrNotFound) {
			sale = &domain.Transaction{
				ID:          uuid.New(),
				Type:        domain.TxTicketSale,
				BookingID:   &b.ID,
				OrganizerID: &event.OrganizerID,
				UserID:      &b.UserID,
				Amount:      b.Total,
				Currency:    b.Currency,
				Gateway:     s.gatewayName,
				Status:      domain.TxPending,
				CreatedAt:   now,
			}
			if err := s.repo.InsertTransaction(ctx, tx, sale); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if _, err := s.repo.CompleteTransaction(ctx, tx, sale.ID,
			settle.Commission.Amount, settle.GatewayFee, settle.Net, cb.GatewayRef, now); err != nil {
			return err
		}

		tickets := buildTickets(b, event, now)
		if err := s.repo.InsertTickets(ctx, tx, tickets); err != nil {
			return err
		}
		if err := s.repo.ApplyIssuanceCounters(ctx, tx, b.EventID, event.OrganizerID, b.Lines); err != nil {
			return err
		}
		if err := s.repo.UpdateBookingStatus(ctx, tx, b.ID, domain.BookingPending, domain.BookingConfirmed, domain.PaymentPaid, now); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"booking_id": b.ID,
			"reference":  b.Reference,
			"user_id":    b.UserID,
			"tickets":    len(tickets),
		})
		if err := s.repo.InsertOutbox(ctx, tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     "booking.confirmed",
			Payload:       payload,
			DedupeKey:     "booking-confirmed:" + b.ID.String(),
		}); err != nil {
			return err
		}
		issued = true
		return nil
	})
	if err != nil {
		return err
	}

	if issued {
		observability.TicketsIssued.Add(float64(b.TotalQuantity()))
		if err := s.audit.LogSaleCompleted(ctx, b, settle.Commission.Amount, settle.GatewayFee, settle.Net); err != nil {
			s.logger.WithField("booking", b.Reference).Error("audit write failed", err)
		}
	}
	return nil
}

func buildTickets(b *domain.Booking, event *domain.Event, now time.Time) []domain.Ticket {
	var tickets []domain.Ticket
	seq := 0
	for _, line := range b.Lines {
		for i := 0; i < line.Quantity; i++ {
			code := domain.NewTicketCode()
			tickets = append(tickets, domain.Ticket{
				ID:          uuid.New(),
				Code:        code,
				Hash:        domain.TicketHash(code, event.ID, event.QRSecret),
				BookingID:   b.ID,
				EventID:     event.ID,
				LineSeq:     seq,
				TicketType:  line.TicketType,
				Price:       line.UnitPrice,
				Currency:    b.Currency,
				HolderName:  b.HolderName,
				HolderEmail: b.HolderEmail,
				AssignedTo:  b.UserID,
				Status:      domain.TicketValid,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			seq++
		}
	}
	return tickets
}
