package ticket_test

import (
	"testing"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/ticket"
	"github.com/google/uuid"
)

func TestTransfer_MovesOwnershipAndRecordsLineage(t *testing.T) {
	owner := uuid.New()
	recipient := uuid.New()
	tk := validTicket()
	tk.AssignedTo = owner
	tt := &domain.TicketType{Name: "Regular", Transferable: true}
	now := time.Now()

	if err := ticket.Transfer(tk, tt, recipient, "gift", now); err != nil {
		t.Fatal(err)
	}

	if tk.AssignedTo != recipient {
		t.Errorf("assigned_to = %s, want %s", tk.AssignedTo, recipient)
	}
	if tk.Status != domain.TicketTransferred {
		t.Errorf("status = %s, want transferred", tk.Status)
	}
	if tk.TransferredFrom == nil || *tk.TransferredFrom != owner {
		t.Error("transferred_from not recorded")
	}
	if tk.TransferredTo == nil || *tk.TransferredTo != recipient {
		t.Error("transferred_to not recorded")
	}
	if tk.TransferReason != "gift" {
		t.Errorf("reason = %q", tk.TransferReason)
	}
}

func TestTransfer_Rejections(t *testing.T) {
	owner := uuid.New()
	transferable := &domain.TicketType{Name: "Regular", Transferable: true}

	tests := []struct {
		name string
		prep func(tk *domain.Ticket) (*domain.TicketType, uuid.UUID)
	}{
		{"non-valid status", func(tk *domain.Ticket) (*domain.TicketType, uuid.UUID) {
			tk.Status = domain.TicketUsed
			return transferable, uuid.New()
		}},
		{"non-transferable type", func(tk *domain.Ticket) (*domain.TicketType, uuid.UUID) {
			return &domain.TicketType{Name: "Regular", Transferable: false}, uuid.New()
		}},
		{"transfer to self", func(tk *domain.Ticket) (*domain.TicketType, uuid.UUID) {
			return transferable, owner
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := validTicket()
			tk.AssignedTo = owner
			typ, to := tt.prep(tk)
			err := ticket.Transfer(tk, typ, to, "", time.Now())
			if err == nil {
				t.Fatal("expected rejection")
			}
			if _, ok := domain.AsValidation(err); !ok {
				t.Errorf("expected ValidationError, got %T", err)
			}
			if tk.Status == domain.TicketTransferred && tt.name != "non-valid status" {
				t.Error("ticket mutated on rejected transfer")
			}
		})
	}
}
