package adoptions

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrStaleState: update condicional perdido contra una acción
	// concurrente (ver reservations.ErrStaleState).
	ErrStaleState = errors.New("application changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, a Application) error
	GetByID(ctx context.Context, id string) (Application, error)
	ListByApplicant(ctx context.Context, applicantUserID string) ([]Application, error)
	ListPending(ctx context.Context) ([]Application, error)

	// UpdateIf persiste a solo si sigue en `expected` (guard por status).
	UpdateIf(ctx context.Context, a Application, expected Status) error
}
