package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/eventhive/ticketing/internal/adapters/pg"
	"github.com/eventhive/ticketing/internal/adapters/rabbit"
	"github.com/eventhive/ticketing/internal/config"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	sweeper := NewSweeper(repo, rabbitPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown sweeper")
}

// Sweeper reclaims inventory from pending bookings that outlived their
// payment window and expires tickets past their validity.
type Sweeper struct {
	repo      *pg.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewSweeper(repo *pg.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Sweeper {
	return &Sweeper{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweepBookings(ctx, now)
			s.sweepTickets(ctx, now)
		}
	}
}

func (s *Sweeper) sweepBookings(ctx context.Context, now time.Time) {
	bookings, err := s.repo.GetExpiredPendingBookings(ctx, now, 100)
	if err != nil {
		s.logger.Error("failed to list expired bookings", err)
		return
	}
	for i := range bookings {
		if err := s.cancelWithRetry(ctx, &bookings[i], now); err != nil {
			s.logger.WithField("booking", bookings[i].Reference).Error("failed to cancel expired booking after retries", err)
		}
	}
}

func (s *Sweeper) cancelWithRetry(ctx context.Context, b *domain.Booking, now time.Time) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		err := s.repo.CancelExpiredBooking(ctx, b, now)
		if err == domain.ErrConflict {
			// Paid or cancelled concurrently, nothing to reclaim.
			return nil
		}
		if err != nil {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"booking_id": b.ID,
			"reference":  b.Reference,
		})
		msg := amqp.Publishing{
			MessageId:   "booking-expired:" + b.ID.String(),
			ContentType: "application/json",
			Body:        payload,
		}
		return s.rabbitPub.Publish(ctx, "booking.expired", msg)
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}

func (s *Sweeper) sweepTickets(ctx context.Context, now time.Time) {
	expired, err := s.repo.ExpireTickets(ctx, now)
	if err != nil {
		s.logger.Error("failed to expire tickets", err)
		return
	}
	if expired > 0 {
		s.logger.WithField("count", expired).Info("expired tickets")
	}
}
