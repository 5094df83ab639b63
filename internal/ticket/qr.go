package ticket

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/eventhive/ticketing/internal/domain"
	"github.com/google/uuid"
)

// QRTTL bounds how long a generated payload scans successfully.
const QRTTL = 15 * time.Minute

// MaxQRBatch caps batch QR generation requests.
const MaxQRBatch = 10

type QRPayload struct {
	TicketID   uuid.UUID `json:"ticket_id"`
	EventID    uuid.UUID `json:"event_id"`
	TicketCode string    `json:"ticket_code"`
	TicketType string    `json:"ticket_type"`
	IssuedAt   time.Time `json:"issued_at"`
	Expiry     time.Time `json:"expiry"`
}

type QRValidationError string

func (e QRValidationError) Error() string { return string(e) }

const (
	ErrQRMalformed    = QRValidationError("qr payload malformed")
	ErrQRBadSignature = QRValidationError("qr signature mismatch")
	ErrQRExpired      = QRValidationError("qr payload expired")
	ErrQRTicketState  = QRValidationError("ticket not in valid status")
)

// EncodeQR produces the scannable payload for a ticket:
// base64(payload_json + "|" + hex(HMAC-SHA256(payload_json, secret))).
func EncodeQR(t *domain.Ticket, secret []byte, now time.Time) (string, error) {
	payload := QRPayload{
		TicketID:   t.ID,
		EventID:    t.EventID,
		TicketCode: t.Code,
		TicketType: t.TicketType,
		IssuedAt:   now,
		Expiry:     now.Add(QRTTL),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sig := sign(raw, secret)
	blob := append(raw, '|')
	blob = append(blob, sig...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecodeQR verifies the signature and expiry of a scanned payload. The
// caller still has to check the referenced ticket via ValidateScan.
func DecodeQR(encoded string, secret []byte, now time.Time) (*QRPayload, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrQRMalformed
	}
	idx := bytes.LastIndexByte(blob, '|')
	if idx < 0 {
		return nil, ErrQRMalformed
	}
	raw, sig := blob[:idx], blob[idx+1:]
	if !hmac.Equal(sig, sign(raw, secret)) {
		return nil, ErrQRBadSignature
	}
	var payload QRPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrQRMalformed
	}
	if now.After(payload.Expiry) {
		return nil, ErrQRExpired
	}
	return &payload, nil
}

// ValidateScan checks a decoded payload against the persisted ticket.
func ValidateScan(payload *QRPayload, t *domain.Ticket) error {
	if t == nil || t.ID != payload.TicketID || t.Code != payload.TicketCode {
		return ErrQRTicketState
	}
	if t.Status != domain.TicketValid {
		return ErrQRTicketState
	}
	return nil
}

func sign(raw, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(raw)
	return []byte(hex.EncodeToString(mac.Sum(nil)))
}
