package transfer

import (
	"context"
	"errors"
	"time"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/registry"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("pet not found")

	// ErrConflict: la mascota ya pertenece a otro usuario al momento del
	// intento. Última línea de defensa contra la doble venta.
	ErrConflict = errors.New("pet already owned by another user")
)

// Workflow identifica qué flujo completó el traspaso.
type Workflow string

const (
	WorkflowPurchase Workflow = "purchase"
	WorkflowAdoption Workflow = "adoption"
)

type Input struct {
	PetCode        string
	NewOwnerUserID string
	SourceWorkflow Workflow

	// TxID: id del trámite (reserva o solicitud). La dupla
	// (PetCode, TxID) hace el traspaso idempotente bajo retry.
	TxID string

	PerformedBy     string
	PerformedByRole string
	OccurredAt      time.Time
}

// NewStatus es el estado canónico destino del traspaso.
func (in Input) NewStatus() registry.Status {
	if in.SourceWorkflow == WorkflowAdoption {
		return registry.StatusAdopted
	}
	return registry.StatusSold
}

// Repository ejecuta el traspaso con atomicidad cross-entity:
// status del registry + ownerUserId + evento de historia, todo o nada
// (una transacción SQL en postgres, un mutex en memoria).
//
// Devuelve applied=false cuando el TxID ya fue aplicado antes; en ese
// caso el evento devuelto es el original y no se escribe nada.
type Repository interface {
	Apply(ctx context.Context, in Input, event history.Event) (applied bool, prior history.Event, err error)
}
