package memory

import (
	"context"
	"errors"
	"sync"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/registry"
	"pet-registry/internal/domain/transfer"
	"pet-registry/internal/ports/sources"
)

// transferRepo implementa el traspaso atómico sobre los repos in-memory.
// Su mutex serializa los transfers completos (registry + historia +
// marca de idempotencia); el equivalente postgres usa una transacción.
type transferRepo struct {
	mu sync.Mutex

	registry *registryRepo
	history  *historyRepo

	// appliedTx: txID -> id del evento original (idempotencia).
	appliedTx map[string]string
}

// NewTransferRepo exige los repos concretos de este paquete: el
// traspaso necesita mutarlos en conjunto.
func NewTransferRepo(reg registry.Repository, hist history.Repository) (transfer.Repository, error) {
	r, ok := reg.(*registryRepo)
	if !ok {
		return nil, errors.New("memory transfer repo requires memory registry repo")
	}
	h, ok := hist.(*historyRepo)
	if !ok {
		return nil, errors.New("memory transfer repo requires memory history repo")
	}
	return &transferRepo{
		registry:  r,
		history:   h,
		appliedTx: make(map[string]string),
	}, nil
}

func (t *transferRepo) Apply(ctx context.Context, in transfer.Input, event history.Event) (bool, history.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// retry con el mismo txID: devolver el evento original, sin escribir
	if eventID, ok := t.appliedTx[in.TxID]; ok {
		if prior, found := t.history.getByID(eventID); found {
			return false, prior, nil
		}
		return false, event, nil
	}

	p, err := t.registry.GetByPetCode(ctx, in.PetCode)
	if err != nil {
		return false, history.Event{}, transfer.ErrNotFound
	}

	// última defensa contra la doble venta: si otro ya es dueño, no hay
	// traspaso
	if alreadyOwnedByOther(p, in.NewOwnerUserID) {
		return false, history.Event{}, transfer.ErrConflict
	}
	if p.ActiveWorkflowID != "" && p.ActiveWorkflowID != in.TxID {
		return false, history.Event{}, transfer.ErrConflict
	}

	p.OwnerUserID = in.NewOwnerUserID
	p.CurrentStatus = in.NewStatus()
	if in.SourceWorkflow == transfer.WorkflowAdoption {
		p.PrimarySource = sources.TypeAdopted
	}
	p.ActiveWorkflowID = ""
	p.UpdatedAt = in.OccurredAt

	if err := t.registry.Update(ctx, p); err != nil {
		return false, history.Event{}, err
	}
	if err := t.history.Append(ctx, event); err != nil {
		return false, history.Event{}, err
	}
	t.appliedTx[in.TxID] = event.ID

	return true, history.Event{}, nil
}

func alreadyOwnedByOther(p registry.PetIdentity, newOwner string) bool {
	if p.OwnerUserID == "" || p.OwnerUserID == newOwner {
		return false
	}
	return p.CurrentStatus == registry.StatusSold || p.CurrentStatus == registry.StatusAdopted
}
