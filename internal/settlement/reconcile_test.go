package settlement_test

import (
	"testing"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/gateway"
	"github.com/eventhive/ticketing/internal/settlement"
	"github.com/google/uuid"
)

func payoutAt(status domain.PayoutStatus, requested time.Time) *domain.Payout {
	return &domain.Payout{
		ID:          uuid.New(),
		OrganizerID: uuid.New(),
		Status:      status,
		RequestedAt: requested,
	}
}

func TestShouldExpire(t *testing.T) {
	now := time.Now()

	fresh := payoutAt(domain.PayoutPending, now.Add(-29*24*time.Hour))
	if settlement.ShouldExpire(fresh, now) {
		t.Error("29-day-old pending payout should not expire")
	}

	old := payoutAt(domain.PayoutPending, now.Add(-31*24*time.Hour))
	if !settlement.ShouldExpire(old, now) {
		t.Error("31-day-old pending payout should expire")
	}

	approved := payoutAt(domain.PayoutApproved, now.Add(-31*24*time.Hour))
	if settlement.ShouldExpire(approved, now) {
		t.Error("approved payouts never auto-expire")
	}
}

func TestClassifyStuck_Approved(t *testing.T) {
	now := time.Now()

	p := payoutAt(domain.PayoutApproved, now.Add(-48*time.Hour))
	approvedAt := now.Add(-25 * time.Hour)
	p.ApprovedAt = &approvedAt

	finding, stuck := settlement.ClassifyStuck(p, now)
	if !stuck {
		t.Fatal("approved 25h ago should be flagged")
	}
	if finding.Kind != settlement.StuckApproved {
		t.Errorf("kind = %s", finding.Kind)
	}
	if finding.PayoutID != p.ID || finding.OrganizerID != p.OrganizerID {
		t.Error("finding missing payout context")
	}

	recent := now.Add(-23 * time.Hour)
	p.ApprovedAt = &recent
	if _, stuck := settlement.ClassifyStuck(p, now); stuck {
		t.Error("approved 23h ago should not be flagged")
	}
}

func TestClassifyStuck_Processing(t *testing.T) {
	now := time.Now()

	p := payoutAt(domain.PayoutProcessing, now.Add(-80*time.Hour))
	noRefAge := now.Add(-49 * time.Hour)
	p.ProcessedAt = &noRefAge

	finding, stuck := settlement.ClassifyStuck(p, now)
	if !stuck || finding.Kind != settlement.StuckProcessingNoRef {
		t.Errorf("49h without reference: stuck=%v kind=%s", stuck, finding.Kind)
	}

	// With a reference the threshold is 72h.
	p.ProcessorRef = "trf_123"
	if _, stuck := settlement.ClassifyStuck(p, now); stuck {
		t.Error("49h with reference should not be flagged")
	}

	inconclusiveAge := now.Add(-73 * time.Hour)
	p.ProcessedAt = &inconclusiveAge
	finding, stuck = settlement.ClassifyStuck(p, now)
	if !stuck || finding.Kind != settlement.StuckProcessingInconclusive {
		t.Errorf("73h inconclusive: stuck=%v kind=%s", stuck, finding.Kind)
	}
}

func TestClassifyStuck_DedupeKeyStable(t *testing.T) {
	now := time.Now()
	p := payoutAt(domain.PayoutApproved, now)
	approvedAt := now.Add(-30 * time.Hour)
	p.ApprovedAt = &approvedAt

	f1, _ := settlement.ClassifyStuck(p, now)
	f2, _ := settlement.ClassifyStuck(p, now.Add(time.Hour))
	if f1.DedupeKey() != f2.DedupeKey() {
		t.Error("dedupe key must be stable across reconciliation passes")
	}
}

func TestApplyTransferStatus(t *testing.T) {
	now := time.Now()

	tests := []struct {
		status      gateway.TransferStatus
		wantChanged bool
		wantStatus  domain.PayoutStatus
	}{
		{gateway.TransferCompleted, true, domain.PayoutCompleted},
		{gateway.TransferFailed, true, domain.PayoutFailed},
		{gateway.TransferReversed, true, domain.PayoutFailed},
		{gateway.TransferPending, false, domain.PayoutProcessing},
		{gateway.TransferInconclusive, false, domain.PayoutProcessing},
	}
	for _, tt := range tests {
		p := payoutAt(domain.PayoutProcessing, now)
		changed, err := settlement.ApplyTransferStatus(p, tt.status, now)
		if err != nil {
			t.Fatalf("%s: %v", tt.status, err)
		}
		if changed != tt.wantChanged || p.Status != tt.wantStatus {
			t.Errorf("%s: changed=%v status=%s", tt.status, changed, p.Status)
		}
	}

	completed := payoutAt(domain.PayoutCompleted, now)
	if _, err := settlement.ApplyTransferStatus(completed, gateway.TransferCompleted, now); err != domain.ErrInvalidTransition {
		t.Errorf("completed payout: err = %v, want ErrInvalidTransition", err)
	}
}

func TestTransition_Table(t *testing.T) {
	now := time.Now()

	p := payoutAt(domain.PayoutPending, now)
	if err := settlement.Transition(p, domain.PayoutApproved, now); err != nil {
		t.Fatal(err)
	}
	if p.ApprovedAt == nil {
		t.Error("approved_at not stamped")
	}
	if err := settlement.Transition(p, domain.PayoutProcessing, now); err != nil {
		t.Fatal(err)
	}
	if err := settlement.Transition(p, domain.PayoutCompleted, now); err != nil {
		t.Fatal(err)
	}

	// Terminal states reject everything.
	if err := settlement.Transition(p, domain.PayoutFailed, now); err != domain.ErrInvalidTransition {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}

	// Backwards transitions are rejected.
	q := payoutAt(domain.PayoutProcessing, now)
	if err := settlement.Transition(q, domain.PayoutPending, now); err != domain.ErrInvalidTransition {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}
