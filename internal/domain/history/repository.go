package history

import "context"

// Repository es un ledger append-only: no hay update ni delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByPet(ctx context.Context, petCode string, limit int) ([]Event, error)
}
