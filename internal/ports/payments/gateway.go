package payments

import (
	"context"
	"errors"
)

var (
	// ErrVerificationFailed: la pasarela rechazó la verificación.
	// El workflow queda en payment_pending y el usuario puede reintentar.
	ErrVerificationFailed = errors.New("payment verification failed")
)

// Order es la orden creada en la pasarela externa.
// Key es la clave pública que el front necesita para abrir el checkout.
type Order struct {
	OrderID     string
	Key         string
	AmountCents int64
	Currency    string
}

// Gateway es el contrato con la pasarela de pagos.
// Verify es la ÚNICA señal de éxito confiable: el "me pagó" que reporta
// el cliente nunca alcanza para mover un workflow a paid.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (Order, error)
	Verify(ctx context.Context, orderID, paymentID, signature string) error
}
