package ticket

import (
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
)

// Transfer moves ownership of a ticket to the recipient, recording the
// single-hop lineage. The ticket must be valid, its type transferable, and
// the recipient must differ from the current owner.
func Transfer(t *domain.Ticket, tt *domain.TicketType, to uuid.UUID, reason string, now time.Time) error {
	ve := &domain.ValidationError{}
	if t.Status != domain.TicketValid {
		ve.Add("ticket is not transferable in status " + string(t.Status))
	}
	if tt == nil || !tt.Transferable {
		ve.Add("ticket type " + t.TicketType + " does not allow transfers")
	}
	if to == t.AssignedTo {
		ve.Add("cannot transfer a ticket to its current owner")
	}
	if ve.HasReasons() {
		return ve
	}

	from := t.AssignedTo
	t.TransferredFrom = &from
	t.TransferredTo = &to
	t.TransferredAt = &now
	t.TransferReason = reason
	t.AssignedTo = to
	t.Status = domain.TicketTransferred
	t.UpdatedAt = now
	return nil
}
