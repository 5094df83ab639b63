package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/shopspring/decimal"
)

type ClientConfig struct {
	BaseURL   string
	ClientID  string
	ClientKey string
	HMACKey   string
}

type HTTPClient struct {
	baseURL   string
	clientID  string
	clientKey string
	hmacKey   []byte

	hc *http.Client
}

func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:   cfg.BaseURL,
		clientID:  cfg.ClientID,
		clientKey: cfg.ClientKey,
		hmacKey:   []byte(cfg.HMACKey),

		// Short timeout: a hung provider must not hang reconciliation.
		hc: &http.Client{Timeout: 5 * time.Second},
	}
}

type initRequest struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type initResponse struct {
	GatewayRef  string `json:"gateway_ref"`
	CheckoutURL string `json:"checkout_url"`
}

func (c *HTTPClient) InitializePayment(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*PaymentIntent, error) {
	body, err := json.Marshal(initRequest{
		Reference: reference,
		Amount:    amount.StringFixed(2),
		Currency:  currency,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "/v1/payments", body)
	if err != nil {
		return nil, errors.CombineErrors(domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.Wrapf(domain.ErrGatewayUnavailable, "gateway returned %d", resp.StatusCode)
	}

	var out initResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.CombineErrors(domain.ErrGatewayUnavailable, err)
	}
	return &PaymentIntent{
		Reference:   reference,
		GatewayRef:  out.GatewayRef,
		CheckoutURL: out.CheckoutURL,
	}, nil
}

type transferRequest struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type transferResponse struct {
	TransferRef string `json:"transfer_ref"`
}

func (c *HTTPClient) InitiateTransfer(ctx context.Context, reference string, amount decimal.Decimal, currency string) (string, error) {
	body, err := json.Marshal(transferRequest{
		Reference: reference,
		Amount:    amount.StringFixed(2),
		Currency:  currency,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.post(ctx, "/v1/transfers", body)
	if err != nil {
		return "", errors.CombineErrors(domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", errors.Wrapf(domain.ErrGatewayUnavailable, "gateway returned %d", resp.StatusCode)
	}

	var out transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.CombineErrors(domain.ErrGatewayUnavailable, err)
	}
	return out.TransferRef, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

func (c *HTTPClient) TransferStatus(ctx context.Context, reference string) (TransferStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transfers/"+reference, nil)
	if err != nil {
		return TransferInconclusive, err
	}
	c.signRequest(req, nil)

	resp, err := c.hc.Do(req)
	if err != nil {
		// Timeout or network failure: fail closed, re-check next pass.
		return TransferInconclusive, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TransferInconclusive, nil
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return TransferInconclusive, nil
	}
	switch out.Status {
	case "success", "completed":
		return TransferCompleted, nil
	case "failed":
		return TransferFailed, nil
	case "reversed":
		return TransferReversed, nil
	case "pending", "processing":
		return TransferPending, nil
	default:
		return TransferInconclusive, nil
	}
}

func (c *HTTPClient) VerifyCallbackSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, c.hmacKey)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *HTTPClient) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.signRequest(req, body)
	return c.hc.Do(req)
}

func (c *HTTPClient) signRequest(req *http.Request, body []byte) {
	mac := hmac.New(sha256.New, c.hmacKey)
	mac.Write([]byte(req.Method))
	mac.Write([]byte(req.URL.Path))
	mac.Write(body)
	req.Header.Set("X-Client-Id", c.clientID)
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
}
