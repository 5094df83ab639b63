package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eventhive/ticketing/internal/adapters/pg"
	"github.com/eventhive/ticketing/internal/booking"
	"github.com/eventhive/ticketing/internal/config"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/eventhive/ticketing/internal/gateway"
	"github.com/eventhive/ticketing/internal/idempotency"
	"github.com/eventhive/ticketing/internal/observability"
	"github.com/eventhive/ticketing/internal/rateLimit"
	"github.com/eventhive/ticketing/internal/settlement"
	"github.com/eventhive/ticketing/internal/ticket"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	cfg      *config.Config
	repo     *pg.Repository
	bookings *booking.Service
	payouts  *settlement.Service
	verifier gateway.SignatureVerifier
	rl       *rateLimit.RateLimiter
	idemp    *idempotency.Idempotency
	logger   observability.Logger
}

func NewHandlers(cfg *config.Config, repo *pg.Repository, bookings *booking.Service, payouts *settlement.Service, verifier gateway.SignatureVerifier, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		repo:     repo,
		bookings: bookings,
		payouts:  payouts,
		verifier: verifier,
		rl:       rl,
		idemp:    idemp,
		logger:   logger,
	}
}

// writeError maps domain errors onto HTTP responses. Business-rule
// rejections carry every reason so clients can show them all at once.
func writeError(w http.ResponseWriter, err error) {
	if ve, ok := domain.AsValidation(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"errors": ve.Reasons})
		return
	}
	var qrErr ticket.QRValidationError
	if errors.As(err, &qrErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"errors": []string{qrErr.Error()}})
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrSerializationFailure):
		http.Error(w, "conflict, try again", http.StatusConflict)
	case errors.Is(err, domain.ErrGatewayUnavailable):
		http.Error(w, "payment gateway unavailable, retry later", http.StatusBadGateway)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, "invalid input", http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) []byte {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req booking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.UserID = requestUserID(r)

	b, intent, err := h.bookings.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{
		"booking_id": b.ID,
		"reference":  b.Reference,
		"status":     b.Status,
		"subtotal":   b.Subtotal,
		"total":      b.Total,
		"currency":   b.Currency,
		"expires_at": b.ExpiresAt.Format(time.RFC3339),
	}
	if intent != nil {
		resp["checkout_url"] = intent.CheckoutURL
		resp["gateway_ref"] = intent.GatewayRef
	}
	data := writeJSON(w, http.StatusCreated, resp)
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.repo.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if b.UserID != requestUserID(r) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	tickets, err := h.repo.TicketsForBooking(r.Context(), b.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking_id":     b.ID,
		"reference":      b.Reference,
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
		"lines":          b.Lines,
		"total":          b.Total,
		"currency":       b.Currency,
		"tickets":        tickets,
	})
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.bookings.Cancel(r.Context(), id, requestUserID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PaymentCallback receives the gateway webhook. The body signature is
// verified before anything is decoded; an unsigned or tampered callback
// never reaches booking state.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.verifier.VerifyCallbackSignature(body, r.Header.Get("X-Gateway-Signature")) {
		h.logger.Warn("rejected payment callback with bad signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var cb booking.Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.bookings.HandlePaymentCallback(r.Context(), cb); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) RequestRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rr, err := h.bookings.RequestRefund(r.Context(), id, requestUserID(r), req.Amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"request_id": rr.ID,
		"status":     rr.Status,
		"amount":     rr.RequestedAmount,
	})
}

func (h *Handlers) ReviewRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Approve        bool            `json:"approve"`
		ApprovedAmount decimal.Decimal `json:"approved_amount"`
		Notes          string          `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rr, err := h.bookings.ReviewRefund(r.Context(), id, requestUserID(r), req.Approve, req.ApprovedAmount, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id":      rr.ID,
		"status":          rr.Status,
		"approved_amount": rr.ApprovedAmount,
	})
}

func (h *Handlers) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	tx, err := h.bookings.ProcessRefund(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id":    tx.ID,
		"amount":            tx.Amount,
		"commission_amount": tx.CommissionAmount,
		"net_amount":        tx.NetAmount,
	})
}

// TicketQR generates the scannable payload for one ticket. Regeneration
// is throttled per user and per ticket.
func (h *Handlers) TicketQR(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	userID := requestUserID(r)
	if !h.rl.Allow(r.Context(), "qr:user:"+userID.String(), h.cfg.QRRatePerMinute, time.Minute) ||
		!h.rl.Allow(r.Context(), "qr:ticket:"+id.String(), h.cfg.QRRatePerMinute, time.Minute) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	t, err := h.repo.GetTicket(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if t.AssignedTo != userID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	event, err := h.repo.GetEvent(r.Context(), t.EventID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	qr, err := ticket.EncodeQR(t, event.QRSecret, now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"qr":         qr,
		"expires_at": now.Add(ticket.QRTTL).Format(time.RFC3339),
	})
}

// BookingQRBatch generates payloads for all of a booking's tickets in one
// request, capped at the batch limit and throttled separately from single
// regeneration.
func (h *Handlers) BookingQRBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	userID := requestUserID(r)
	if !h.rl.Allow(r.Context(), "qr-batch:user:"+userID.String(), h.cfg.QRBatchRatePerMinute, time.Minute) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	b, err := h.repo.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if b.UserID != userID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	tickets, err := h.repo.TicketsForBooking(r.Context(), b.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(tickets) > ticket.MaxQRBatch {
		writeError(w, &domain.ValidationError{Reasons: []string{"booking exceeds the QR batch limit, request tickets individually"}})
		return
	}
	event, err := h.repo.GetEvent(r.Context(), b.EventID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	out := make([]map[string]interface{}, 0, len(tickets))
	for i := range tickets {
		if tickets[i].Status != domain.TicketValid {
			continue
		}
		qr, err := ticket.EncodeQR(&tickets[i], event.QRSecret, now)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, map[string]interface{}{
			"ticket_id": tickets[i].ID,
			"qr":        qr,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tickets":    out,
		"expires_at": now.Add(ticket.QRTTL).Format(time.RFC3339),
	})
}

// ScanTicket validates a presented QR payload at the gate and marks the
// ticket used. Double scans come back as conflicts.
func (h *Handlers) ScanTicket(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		QR   string `json:"qr"`
		Gate string `json:"gate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := h.repo.GetEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	payload, err := ticket.DecodeQR(req.QR, event.QRSecret, now)
	if err != nil {
		writeError(w, err)
		return
	}
	if payload.EventID != event.ID {
		writeError(w, ticket.ErrQRTicketState)
		return
	}

	t, err := h.repo.GetTicket(r.Context(), payload.TicketID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ticket.ValidateScan(payload, t); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.MarkTicketUsed(r.Context(), t.ID, requestUserID(r), req.Gate, now); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket_id":   t.ID,
		"ticket_type": t.TicketType,
		"holder_name": t.HolderName,
		"used_at":     now.Format(time.RFC3339),
	})
}

func (h *Handlers) TransferTicket(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		To     uuid.UUID `json:"to"`
		Reason string    `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := h.repo.GetTicket(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if t.AssignedTo != requestUserID(r) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	event, err := h.repo.GetEvent(r.Context(), t.EventID)
	if err != nil {
		writeError(w, err)
		return
	}
	tt, _ := event.TicketType(t.TicketType)

	if err := ticket.Transfer(t, tt, req.To, req.Reason, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.SaveTransfer(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket_id": t.ID,
		"status":    t.Status,
		"to":        req.To,
	})
}

func (h *Handlers) RequestPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrganizerID uuid.UUID `json:"organizer_id"`
		From        time.Time `json:"from"`
		To          time.Time `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.payouts.RequestPayout(r.Context(), req.OrganizerID, req.From, req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payoutBody(p))
}

func (h *Handlers) ReviewPayout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.payouts.Review(r.Context(), id, requestUserID(r), req.Approve, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutBody(p))
}

func (h *Handlers) DispatchPayout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	p, err := h.payouts.Dispatch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutBody(p))
}

func (h *Handlers) FailPayout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.payouts.Fail(r.Context(), id, requestUserID(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutBody(p))
}

func (h *Handlers) GetPayout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	p, err := h.repo.GetPayout(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutBody(p))
}

func (h *Handlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	status := domain.PayoutStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.PayoutPending
	}
	payouts, err := h.repo.ListPayoutsByStatus(r.Context(), status, 100)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(payouts))
	for i := range payouts {
		out = append(out, payoutBody(&payouts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payouts": out})
}

func payoutBody(p *domain.Payout) map[string]interface{} {
	return map[string]interface{}{
		"payout_id":      p.ID,
		"organizer_id":   p.OrganizerID,
		"gross_amount":   p.GrossAmount,
		"commission":     p.Commission,
		"processing_fee": p.ProcessingFee,
		"net_amount":     p.NetAmount,
		"currency":       p.Currency,
		"status":         p.Status,
		"processor_ref":  p.ProcessorRef,
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
