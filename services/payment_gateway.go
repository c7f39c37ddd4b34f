package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"editorial-workflow-api/config"
)

// OrderRef is the gateway's answer to an order request.
type OrderRef struct {
	ExternalOrderID string
}

// PaymentGateway is the payment gateway port.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receiptRef string) (OrderRef, error)
	VerifySignature(payload, signature string) bool
}

// CanonicalPaymentPayload is the string the gateway signs for payment callbacks.
func CanonicalPaymentPayload(manuscriptID, paymentID string, amount int64, status string) string {
	return strings.Join([]string{
		strings.TrimSpace(manuscriptID),
		strings.TrimSpace(paymentID),
		strconv.FormatInt(amount, 10),
		strings.ToLower(strings.TrimSpace(status)),
	}, "|")
}

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC compares signature with the expected HMAC in constant time.
func VerifyHMAC(secret, payload, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(SignPayload(secret, payload))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// HTTPGateway talks to an order API that accepts
// POST {base}/orders {"amount","currency","receipt"} and answers {"id"}.
type HTTPGateway struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
}

var _ PaymentGateway = (*HTTPGateway)(nil)

func NewHTTPGateway(settings config.PaymentSettings) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(settings.GatewayURL, "/"),
		keyID:   settings.KeyID,
		secret:  settings.KeySecret,
		client:  &http.Client{Timeout: settings.Timeout()},
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID string `json:"id"`
}

func (g *HTTPGateway) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receiptRef string) (OrderRef, error) {
	if g.baseURL == "" {
		return OrderRef{}, errors.New("payment gateway url not configured")
	}

	body, err := json.Marshal(orderRequest{Amount: amountMinorUnits, Currency: currency, Receipt: receiptRef})
	if err != nil {
		return OrderRef{}, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return OrderRef{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return OrderRef{}, fmt.Errorf("order request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return OrderRef{}, fmt.Errorf("read order response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OrderRef{}, fmt.Errorf("order request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return OrderRef{}, fmt.Errorf("decode order response: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return OrderRef{}, errors.New("order response missing id")
	}
	return OrderRef{ExternalOrderID: out.ID}, nil
}

func (g *HTTPGateway) VerifySignature(payload, signature string) bool {
	return VerifyHMAC(g.secret, payload, signature)
}
