package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pet-registry/internal/platform/httpclient"
	"pet-registry/internal/ports/payments"
)

var (
	ErrNotConfigured = errors.New("razorpay client not configured")
	ErrUpstream      = errors.New("razorpay upstream error")
)

type Config struct {
	// KeyID es pública (va al front para abrir el checkout);
	// KeySecret firma y autentica, nunca sale del backend.
	KeyID     string
	KeySecret string

	// BaseURL por default apunta a la API real; en tests se apunta
	// a un httptest.Server.
	BaseURL string

	Timeout time.Duration
}

type Gateway struct {
	keyID     string
	keySecret string
	client    *httpclient.Client
}

func New(cfg Config) (*Gateway, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	client, err := httpclient.NewWithBaseURL(baseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID != "" {
		client.SetDefaultHeader("Authorization",
			"Basic "+base64.StdEncoding.EncodeToString([]byte(keyID+":"+keySecret)))
	}
	return &Gateway{
		keyID:     keyID,
		keySecret: keySecret,
		client:    client,
	}, nil
}

func (g *Gateway) isConfigured() bool {
	return g != nil && g.keyID != "" && g.keySecret != ""
}

func (g *Gateway) CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (payments.Order, error) {
	if !g.isConfigured() {
		return payments.Order{}, ErrNotConfigured
	}

	req := map[string]any{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  reference,
	}
	var resp struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}

	if err := g.client.DoJSON(ctx, http.MethodPost, "/v1/orders", req, &resp); err != nil {
		return payments.Order{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return payments.Order{
		OrderID:     resp.ID,
		Key:         g.keyID,
		AmountCents: resp.Amount,
		Currency:    resp.Currency,
	}, nil
}

// Verify valida la firma que devuelve el checkout:
// HMAC-SHA256(orderId + "|" + paymentId, keySecret) en hex.
// No requiere round-trip a la API.
func (g *Gateway) Verify(ctx context.Context, orderID, paymentID, signature string) error {
	if !g.isConfigured() {
		return ErrNotConfigured
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return payments.ErrVerificationFailed
	}

	expected := Sign(g.keySecret, orderID, paymentID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) != 1 {
		return payments.ErrVerificationFailed
	}
	return nil
}

// Sign calcula la firma estilo Razorpay para el par order/payment.
// Exportada para que el gateway local y los tests generen firmas válidas.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
