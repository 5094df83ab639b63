// Package gateway talks to the payment provider. All responses are
// untrusted external input: callers must validate signatures and map
// ambiguity to TransferInconclusive before any state transition.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferPending      TransferStatus = "pending"
	TransferCompleted    TransferStatus = "completed"
	TransferFailed       TransferStatus = "failed"
	TransferReversed     TransferStatus = "reversed"
	TransferInconclusive TransferStatus = "inconclusive"
)

type PaymentIntent struct {
	Reference   string
	GatewayRef  string
	CheckoutURL string
}

type Client interface {
	// InitializePayment creates a payment intent for a booking total.
	InitializePayment(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*PaymentIntent, error)

	// InitiateTransfer asks the provider to disburse a payout and returns
	// the provider's reference for it.
	InitiateTransfer(ctx context.Context, reference string, amount decimal.Decimal, currency string) (string, error)

	// TransferStatus queries the provider for the state of a disbursement.
	// Timeouts and unrecognised answers come back as TransferInconclusive,
	// never as an error that could stall the reconciliation sweep.
	TransferStatus(ctx context.Context, reference string) (TransferStatus, error)
}

// VerifyCallbackSignature checks the webhook signature the provider sends
// with payment callbacks.
type SignatureVerifier interface {
	VerifyCallbackSignature(body []byte, signature string) bool
}
