package sources

import "context"

// Reader es el contrato mínimo sobre cada origen de datos.
// Cada subsistema (manual, adopciones, tienda, rescate) expone uno.
type Reader interface {
	ListByOwner(ctx context.Context, userID string) ([]Record, error)
	// GetByPetCode devuelve (Record{}, false, nil) si el origen no conoce el código.
	GetByPetCode(ctx context.Context, petCode string) (Record, bool, error)
}
