package local

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pet-registry/internal/adapters/payments/razorpay"
	"pet-registry/internal/ports/payments"
)

// Gateway es la pasarela de desarrollo: crea órdenes en memoria y
// verifica firmas con el mismo esquema HMAC de la pasarela real, de
// modo que el flujo de pago completo se pueda ejercitar sin cuenta
// externa ni red.
type Gateway struct {
	mu     sync.Mutex
	secret string

	// orders: orderID -> referencia del trámite que lo creó.
	orders map[string]string
}

func New(secret string) *Gateway {
	return &Gateway{
		secret: secret,
		orders: make(map[string]string),
	}
}

func (g *Gateway) CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (payments.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	orderID := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	g.orders[orderID] = reference

	return payments.Order{
		OrderID:     orderID,
		Key:         "local",
		AmountCents: amountCents,
		Currency:    currency,
	}, nil
}

func (g *Gateway) Verify(ctx context.Context, orderID, paymentID, signature string) error {
	g.mu.Lock()
	_, known := g.orders[orderID]
	g.mu.Unlock()

	if !known || paymentID == "" {
		return payments.ErrVerificationFailed
	}
	expected := razorpay.Sign(g.secret, orderID, paymentID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) != 1 {
		return payments.ErrVerificationFailed
	}
	return nil
}

// Sign expone la firma válida para una orden; lo usan los tests E2E
// para simular el callback del checkout.
func (g *Gateway) Sign(orderID, paymentID string) string {
	return razorpay.Sign(g.secret, orderID, paymentID)
}
