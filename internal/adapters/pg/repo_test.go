package pg_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/eventhive/ticketing/internal/adapters/pg"
	"github.com/eventhive/ticketing/internal/domain"
)

func setupRepo(t *testing.T) *pg.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ticketing",
				"POSTGRES_PASSWORD": "ticketing",
				"POSTGRES_DB":       "ticketing",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	dsn := fmt.Sprintf("postgres://ticketing:ticketing@%s:%s/ticketing", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../../migrations/001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatal(err)
	}

	return pg.NewRepository(pool)
}

func seedEvent(t *testing.T, repo *pg.Repository, capacity, regularQty int) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	organizerID := uuid.New()
	eventID := uuid.New()

	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO organizers (id, name, commission_rate) VALUES ($1, 'Org', 8)
		`, organizerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO events (id, organizer_id, name, status, starts_at, ends_at,
				capacity, currency, qr_secret)
			VALUES ($1, $2, 'Show', 'published', now() + interval '7 days',
				now() + interval '7 days 3 hours', $3, 'USD', $4)
		`, eventID, organizerID, capacity, []byte("secret")); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO ticket_types (event_id, name, price, quantity, transferable)
			VALUES ($1, 'Regular', 50, $2, true)
		`, eventID, regularQty)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return eventID, organizerID
}

func pendingBooking(eventID uuid.UUID, qty int) *domain.Booking {
	now := time.Now()
	price := decimal.NewFromInt(50)
	total := price.Mul(decimal.NewFromInt(int64(qty)))
	return &domain.Booking{
		ID:            uuid.New(),
		Reference:     domain.NewBookingReference(),
		UserID:        uuid.New(),
		EventID:       eventID,
		Subtotal:      total,
		ServiceFee:    decimal.Zero,
		Total:         total,
		Currency:      "USD",
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
		Lines: []domain.BookingLine{
			{TicketType: "Regular", Quantity: qty, UnitPrice: price},
		},
		ExpiresAt: now.Add(domain.PendingBookingTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestReserveCapacity_NoOversell(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	eventID, _ := seedEvent(t, repo, 2, 2)

	first := pendingBooking(eventID, 2)
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.ReserveCapacity(ctx, tx, eventID, first.Lines); err != nil {
			return err
		}
		return repo.InsertBooking(ctx, tx, first)
	})
	if err != nil {
		t.Fatalf("first reservation failed: %v", err)
	}

	second := pendingBooking(eventID, 1)
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.ReserveCapacity(ctx, tx, eventID, second.Lines)
	})
	if _, ok := domain.AsValidation(err); !ok {
		t.Fatalf("expected capacity rejection, got %v", err)
	}

	// Releasing the first reservation makes room again.
	if err := repo.CancelExpiredBooking(ctx, first, time.Now()); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.ReserveCapacity(ctx, tx, eventID, second.Lines)
	})
	if err != nil {
		t.Fatalf("reservation after release failed: %v", err)
	}
}

func TestInsertBooking_OneLivePerUserEvent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	eventID, _ := seedEvent(t, repo, 10, 10)

	first := pendingBooking(eventID, 1)
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.ReserveCapacity(ctx, tx, eventID, first.Lines); err != nil {
			return err
		}
		return repo.InsertBooking(ctx, tx, first)
	})
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	// Same user, same event, while the first booking is still live.
	second := pendingBooking(eventID, 1)
	second.UserID = first.UserID
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.ReserveCapacity(ctx, tx, eventID, second.Lines); err != nil {
			return err
		}
		return repo.InsertBooking(ctx, tx, second)
	})
	if err != domain.ErrConflict {
		t.Fatalf("duplicate live booking = %v, want ErrConflict", err)
	}

	// Once the first is cancelled the user can book the event again.
	if err := repo.CancelExpiredBooking(ctx, first, time.Now()); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	third := pendingBooking(eventID, 1)
	third.UserID = first.UserID
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.ReserveCapacity(ctx, tx, eventID, third.Lines); err != nil {
			return err
		}
		return repo.InsertBooking(ctx, tx, third)
	})
	if err != nil {
		t.Fatalf("insert after cancel failed: %v", err)
	}
}

func TestUpdateBookingStatus_GuardedAgainstDoubleApply(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	eventID, _ := seedEvent(t, repo, 5, 5)

	b := pendingBooking(eventID, 1)
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.ReserveCapacity(ctx, tx, eventID, b.Lines); err != nil {
			return err
		}
		return repo.InsertBooking(ctx, tx, b)
	})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.UpdateBookingStatus(ctx, tx, b.ID, domain.BookingPending, domain.BookingConfirmed, domain.PaymentPaid, now)
	})
	if err != nil {
		t.Fatalf("first transition failed: %v", err)
	}

	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.UpdateBookingStatus(ctx, tx, b.ID, domain.BookingPending, domain.BookingConfirmed, domain.PaymentPaid, now)
	})
	if err != domain.ErrConflict {
		t.Fatalf("second transition = %v, want ErrConflict", err)
	}
}

func TestInsertTickets_DuplicateLineSeqRejected(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	eventID, _ := seedEvent(t, repo, 5, 5)

	b := pendingBooking(eventID, 1)
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.ReserveCapacity(ctx, tx, eventID, b.Lines); err != nil {
			return err
		}
		return repo.InsertBooking(ctx, tx, b)
	})
	if err != nil {
		t.Fatal(err)
	}

	mkTicket := func() domain.Ticket {
		now := time.Now()
		code := domain.NewTicketCode()
		return domain.Ticket{
			ID:         uuid.New(),
			Code:       code,
			Hash:       domain.TicketHash(code, eventID, []byte("secret")),
			BookingID:  b.ID,
			EventID:    eventID,
			LineSeq:    0,
			TicketType: "Regular",
			Price:      decimal.NewFromInt(50),
			Currency:   "USD",
			AssignedTo: b.UserID,
			Status:     domain.TicketValid,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.InsertTickets(ctx, tx, []domain.Ticket{mkTicket()})
	})
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.InsertTickets(ctx, tx, []domain.Ticket{mkTicket()})
	})
	if err != domain.ErrConflict {
		t.Fatalf("duplicate line_seq insert = %v, want ErrConflict", err)
	}

	count := 0
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		count, err = repo.CountTicketsForBooking(ctx, tx, b.ID)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("ticket count = %d, want 1", count)
	}
}

func TestSumRefundedForBooking_CountsOnlyCompletedRefunds(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	eventID, _ := seedEvent(t, repo, 5, 5)

	b := pendingBooking(eventID, 1)
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.ReserveCapacity(ctx, tx, eventID, b.Lines); err != nil {
			return err
		}
		return repo.InsertBooking(ctx, tx, b)
	})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	mkTx := func(txType domain.TransactionType, amount string, status domain.TransactionStatus) *domain.Transaction {
		a, err := decimal.NewFromString(amount)
		if err != nil {
			t.Fatal(err)
		}
		return &domain.Transaction{
			ID:        uuid.New(),
			Type:      txType,
			BookingID: &b.ID,
			Amount:    a,
			Currency:  "USD",
			Status:    status,
			CreatedAt: now,
		}
	}
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		for _, tr := range []*domain.Transaction{
			mkTx(domain.TxTicketSale, "2000", domain.TxCompleted),
			mkTx(domain.TxRefund, "-1500", domain.TxCompleted),
			mkTx(domain.TxRefund, "-100", domain.TxPending), // not yet applied
		} {
			if err := repo.InsertTransaction(ctx, tx, tr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var refunded decimal.Decimal
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		refunded, err = repo.SumRefundedForBooking(ctx, tx, b.ID)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !refunded.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("refunded = %s, want 1500", refunded)
	}
}

func TestInsertOutbox_DedupeKeyDropsRepeats(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	payoutID := uuid.New()
	rec := func() pg.OutboxRecord {
		return pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "payout",
			AggregateID:   payoutID,
			EventType:     "payout.stuck",
			Payload:       []byte(`{"kind":"approved_stalled"}`),
			DedupeKey:     "payout-stuck:" + payoutID.String() + ":approved_stalled",
		}
	}

	for i := 0; i < 3; i++ {
		err := repo.WithTx(ctx, func(tx pgx.Tx) error {
			return repo.InsertOutbox(ctx, tx, rec())
		})
		if err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}

	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("outbox records = %d, want 1 after deduped inserts", len(records))
	}
}
