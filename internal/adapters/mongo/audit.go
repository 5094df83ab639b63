package mongo

import (
	"context"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger records every financial transition in an append-only
// collection, so balances can be audited and repaired from source
// transactions without touching the ledger itself.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	ActorID   uuid.UUID `bson:"actor_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, actorID uuid.UUID, data map[string]interface{}) error {
	entry := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, entry)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogSaleCompleted(ctx context.Context, b *domain.Booking, commission, gatewayFee, net decimal.Decimal) error {
	data := map[string]interface{}{
		"booking_id":  b.ID.String(),
		"reference":   b.Reference,
		"gross":       b.Total.String(),
		"commission":  commission.String(),
		"gateway_fee": gatewayFee.String(),
		"net":         net.String(),
		"currency":    b.Currency,
	}
	return a.LogEvent(ctx, "sale.completed", b.UserID, data)
}

func (a *AuditLogger) LogRefundProcessed(ctx context.Context, req *domain.RefundRequest, tx *domain.Transaction) error {
	data := map[string]interface{}{
		"booking_id":        req.BookingID.String(),
		"request_id":        req.ID.String(),
		"amount":            tx.Amount.String(),
		"commission_refund": tx.CommissionAmount.String(),
		"net_refund":        tx.NetAmount.String(),
		"currency":          tx.Currency,
	}
	return a.LogEvent(ctx, "refund.processed", req.UserID, data)
}

func (a *AuditLogger) LogPayoutTransition(ctx context.Context, p *domain.Payout, from domain.PayoutStatus) error {
	data := map[string]interface{}{
		"payout_id":     p.ID.String(),
		"from":          string(from),
		"to":            string(p.Status),
		"net_amount":    p.NetAmount.String(),
		"currency":      p.Currency,
		"processor_ref": p.ProcessorRef,
	}
	return a.LogEvent(ctx, "payout."+string(p.Status), p.OrganizerID, data)
}
