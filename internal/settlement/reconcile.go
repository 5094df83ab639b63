package settlement

import (
	"fmt"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/gateway"
	"github.com/google/uuid"
)

const (
	// PendingExpiry auto-expires payouts never approved.
	PendingExpiry = 30 * 24 * time.Hour
	// ApprovedStuckAfter flags approvals that never started processing.
	ApprovedStuckAfter = 24 * time.Hour
	// ProcessingStuckNoRef flags processing payouts with no provider reference.
	ProcessingStuckNoRef = 48 * time.Hour
	// ProcessingStuckInconclusive flags processing payouts the provider
	// keeps answering inconclusively about.
	ProcessingStuckInconclusive = 72 * time.Hour
)

type StuckKind string

const (
	StuckApproved               StuckKind = "approved_stalled"
	StuckProcessingNoRef        StuckKind = "processing_no_reference"
	StuckProcessingInconclusive StuckKind = "processing_inconclusive"
)

// StuckFinding is an alarm, not a state transition. The reconciler turns
// findings into admin notifications deduplicated by payout id and kind.
type StuckFinding struct {
	PayoutID     uuid.UUID
	OrganizerID  uuid.UUID
	Kind         StuckKind
	Age          time.Duration
	ProcessorRef string
}

// DedupeKey identifies the notification for this finding across repeated
// reconciliation passes.
func (f StuckFinding) DedupeKey() string {
	return fmt.Sprintf("payout-stuck:%s:%s", f.PayoutID, f.Kind)
}

// ShouldExpire reports whether a pending payout has aged out.
func ShouldExpire(p *domain.Payout, now time.Time) bool {
	return p.Status == domain.PayoutPending && now.Sub(p.RequestedAt) > PendingExpiry
}

// ClassifyStuck is a pure classification of a payout against the stuck
// thresholds. It never mutates the payout.
func ClassifyStuck(p *domain.Payout, now time.Time) (StuckFinding, bool) {
	switch p.Status {
	case domain.PayoutApproved:
		if p.ApprovedAt != nil && now.Sub(*p.ApprovedAt) > ApprovedStuckAfter {
			return StuckFinding{
				PayoutID:     p.ID,
				OrganizerID:  p.OrganizerID,
				Kind:         StuckApproved,
				Age:          now.Sub(*p.ApprovedAt),
				ProcessorRef: p.ProcessorRef,
			}, true
		}
	case domain.PayoutProcessing:
		if p.ProcessedAt == nil {
			return StuckFinding{}, false
		}
		age := now.Sub(*p.ProcessedAt)
		if p.ProcessorRef == "" && age > ProcessingStuckNoRef {
			return StuckFinding{
				PayoutID:    p.ID,
				OrganizerID: p.OrganizerID,
				Kind:        StuckProcessingNoRef,
				Age:         age,
			}, true
		}
		if p.ProcessorRef != "" && age > ProcessingStuckInconclusive {
			return StuckFinding{
				PayoutID:     p.ID,
				OrganizerID:  p.OrganizerID,
				Kind:         StuckProcessingInconclusive,
				Age:          age,
				ProcessorRef: p.ProcessorRef,
			}, true
		}
	}
	return StuckFinding{}, false
}

// ApplyTransferStatus folds a provider answer into a processing payout.
// Pending and inconclusive answers change nothing and are re-checked on
// the next pass.
func ApplyTransferStatus(p *domain.Payout, status gateway.TransferStatus, now time.Time) (bool, error) {
	if p.Status != domain.PayoutProcessing {
		return false, domain.ErrInvalidTransition
	}
	switch status {
	case gateway.TransferCompleted:
		p.Status = domain.PayoutCompleted
		p.CompletedAt = &now
		return true, nil
	case gateway.TransferFailed, gateway.TransferReversed:
		p.Status = domain.PayoutFailed
		p.FailureReason = "provider reported " + string(status)
		return true, nil
	default:
		return false, nil
	}
}

// Transition applies a manual or admin-driven payout transition, enforcing
// the transition table and stamping the matching timestamp.
func Transition(p *domain.Payout, to domain.PayoutStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}
	p.Status = to
	switch to {
	case domain.PayoutApproved:
		p.ApprovedAt = &now
	case domain.PayoutProcessing:
		p.ProcessedAt = &now
	case domain.PayoutCompleted:
		p.CompletedAt = &now
	}
	return nil
}
