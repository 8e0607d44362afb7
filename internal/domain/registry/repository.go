package registry

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrAlreadyReserved: otro workflow activo ya reclamó la mascota.
	// Lo devuelve el claim atómico, nunca un check-then-write.
	ErrAlreadyReserved = errors.New("pet already has an active workflow")
)

type Repository interface {
	Create(ctx context.Context, p PetIdentity) error
	Update(ctx context.Context, p PetIdentity) error
	GetByPetCode(ctx context.Context, petCode string) (PetIdentity, error)
	GetByCanonicalID(ctx context.Context, id string) (PetIdentity, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]PetIdentity, error)

	// ClaimWorkflow setea ActiveWorkflowID de forma atómica condicional:
	// solo si está vacío (o ya es workflowID, para reintentos). Si otro
	// workflow lo tiene, ErrAlreadyReserved. Además pasa el status a
	// reserved cuando estaba owned.
	ClaimWorkflow(ctx context.Context, petCode, workflowID string) error

	// ReleaseWorkflow limpia el claim solo si lo tiene workflowID
	// (cancelación / rechazo). Restaura owned si estaba reserved.
	ReleaseWorkflow(ctx context.Context, petCode, workflowID string) error

	Quarantine(ctx context.Context, q QuarantinedRecord) error
	ListQuarantined(ctx context.Context) ([]QuarantinedRecord, error)
}
