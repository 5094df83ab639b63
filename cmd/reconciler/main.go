package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/eventhive/ticketing/internal/adapters/mongo"
	"github.com/eventhive/ticketing/internal/adapters/pg"
	"github.com/eventhive/ticketing/internal/config"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/gateway"
	"github.com/eventhive/ticketing/internal/observability"
	"github.com/eventhive/ticketing/internal/settlement"
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

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("ticketing"), logger)

	gw := gateway.NewHTTPClient(gateway.ClientConfig{
		BaseURL:   cfg.GatewayBaseURL,
		ClientID:  cfg.GatewayClient,
		ClientKey: cfg.GatewayKey,
		HMACKey:   cfg.GatewayHMACKey,
	})

	reconciler := NewReconciler(repo, gw, audit, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reconciler.Run(ctx, cfg.ReconcileInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown reconciler")
}

// Reconciler drives payout state against the provider: expires stale
// pending payouts, resolves processing payouts from transfer-status
// answers, and flags payouts that have been sitting too long.
type Reconciler struct {
	repo   *pg.Repository
	gw     gateway.Client
	audit  *mongoadapter.AuditLogger
	logger observability.Logger
}

func NewReconciler(repo *pg.Repository, gw gateway.Client, audit *mongoadapter.AuditLogger, logger observability.Logger) *Reconciler {
	return &Reconciler{repo: repo, gw: gw, audit: audit, logger: logger}
}

func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.expirePending(ctx, now)
			r.resolveProcessing(ctx, now)
			r.flagStuck(ctx, now)
		}
	}
}

func (r *Reconciler) expirePending(ctx context.Context, now time.Time) {
	payouts, err := r.repo.ListPayoutsByStatus(ctx, domain.PayoutPending, 100)
	if err != nil {
		r.logger.Error("failed to list pending payouts", err)
		return
	}
	for i := range payouts {
		p := &payouts[i]
		if !settlement.ShouldExpire(p, now) {
			continue
		}
		from := p.Status
		if err := settlement.Transition(p, domain.PayoutExpired, now); err != nil {
			continue
		}
		if err := r.repo.SavePayoutTransition(ctx, p, from); err != nil {
			r.logger.WithField("payout", p.ID.String()).Error("failed to expire payout", err)
			continue
		}
		r.auditTransition(ctx, p, from)
	}
}

func (r *Reconciler) resolveProcessing(ctx context.Context, now time.Time) {
	payouts, err := r.repo.ListPayoutsByStatus(ctx, domain.PayoutProcessing, 100)
	if err != nil {
		r.logger.Error("failed to list processing payouts", err)
		return
	}
	for i := range payouts {
		p := &payouts[i]
		if p.ProcessorRef == "" {
			continue
		}

		status, err := r.gw.TransferStatus(ctx, p.ProcessorRef)
		if err != nil {
			r.logger.WithField("payout", p.ID.String()).Error("transfer status query failed", err)
			continue
		}
		if status == gateway.TransferInconclusive {
			observability.GatewayInconclusive.Inc()
			continue
		}

		from := p.Status
		changed, err := settlement.ApplyTransferStatus(p, status, now)
		if err != nil || !changed {
			continue
		}
		if err := r.repo.SavePayoutTransition(ctx, p, from); err != nil {
			r.logger.WithField("payout", p.ID.String()).Error("failed to save payout transition", err)
			continue
		}
		r.auditTransition(ctx, p, from)
	}
}

// flagStuck raises at most one notification per payout and stuck kind.
// The flag column gates repeated metric bumps; the outbox dedupe key
// gates repeated notifications.
func (r *Reconciler) flagStuck(ctx context.Context, now time.Time) {
	for _, status := range []domain.PayoutStatus{domain.PayoutApproved, domain.PayoutProcessing} {
		payouts, err := r.repo.ListPayoutsByStatus(ctx, status, 100)
		if err != nil {
			r.logger.Error("failed to list payouts", err)
			continue
		}
		for i := range payouts {
			p := &payouts[i]
			finding, stuck := settlement.ClassifyStuck(p, now)
			if !stuck {
				continue
			}

			first, err := r.repo.FlagPayoutStuck(ctx, p.ID, now)
			if err != nil {
				r.logger.WithField("payout", p.ID.String()).Error("failed to flag payout", err)
				continue
			}
			if first {
				observability.PayoutsStuck.Inc()
			}

			payload, _ := json.Marshal(map[string]interface{}{
				"payout_id":    finding.PayoutID,
				"organizer_id": finding.OrganizerID,
				"kind":         finding.Kind,
				"age_seconds":  int(finding.Age.Seconds()),
			})
			err = r.repo.WithTx(ctx, func(tx pgx.Tx) error {
				return r.repo.InsertOutbox(ctx, tx, pg.OutboxRecord{
					ID:            uuid.New(),
					AggregateType: "payout",
					AggregateID:   finding.PayoutID,
					EventType:     "payout.stuck",
					Payload:       payload,
					DedupeKey:     finding.DedupeKey(),
				})
			})
			if err != nil {
				r.logger.WithField("payout", p.ID.String()).Error("failed to enqueue stuck notification", err)
			}
		}
	}
}

func (r *Reconciler) auditTransition(ctx context.Context, p *domain.Payout, from domain.PayoutStatus) {
	if err := r.audit.LogPayoutTransition(ctx, p, from); err != nil {
		r.logger.WithField("payout", p.ID.String()).Error("audit write failed", err)
	}
}
