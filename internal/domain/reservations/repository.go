package reservations

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrStaleState: el update condicional encontró la reserva en un
	// estado distinto al esperado (dos managers clickearon a la vez).
	// Nadie pisa a nadie; el que perdió recibe esto.
	ErrStaleState = errors.New("reservation changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, r Reservation) error
	GetByID(ctx context.Context, id string) (Reservation, error)
	ListByBuyer(ctx context.Context, buyerUserID string) ([]Reservation, error)
	ListByStore(ctx context.Context, storeID string) ([]Reservation, error)

	// UpdateIf persiste r solo si el registro sigue en `expected`
	// (UPDATE ... WHERE status = expected). Si no, ErrStaleState.
	UpdateIf(ctx context.Context, r Reservation, expected Status) error
}
