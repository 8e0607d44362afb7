package transfer

import (
	"context"
	"strings"
	"time"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/petcode"

	"github.com/google/uuid"
)

// Service es el único camino por el que un workflow convierte su éxito
// en un cambio de dueño en el registry. Una sola operación, idempotente.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Transfer aplica el traspaso. Llamarlo dos veces con el mismo
// (petCode, txID) produce UN solo evento: el segundo llamado devuelve
// el evento original sin tocar nada.
func (s *Service) Transfer(ctx context.Context, in Input) (history.Event, error) {
	in.PetCode = strings.TrimSpace(in.PetCode)
	in.NewOwnerUserID = strings.TrimSpace(in.NewOwnerUserID)
	in.TxID = strings.TrimSpace(in.TxID)

	if !petcode.IsValid(in.PetCode) || in.NewOwnerUserID == "" || in.TxID == "" {
		return history.Event{}, ErrInvalidInput
	}
	if in.SourceWorkflow != WorkflowPurchase && in.SourceWorkflow != WorkflowAdoption {
		return history.Event{}, ErrInvalidInput
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.now()
	}

	event := history.Event{
		ID:              uuid.NewString(),
		PetCode:         in.PetCode,
		Type:            history.EventTypeOwnershipTransferred,
		Timestamp:       in.OccurredAt,
		PerformedBy:     in.PerformedBy,
		PerformedByRole: in.PerformedByRole,
		Metadata: map[string]string{
			"new_owner":       in.NewOwnerUserID,
			"source_workflow": string(in.SourceWorkflow),
			"tx_id":           in.TxID,
		},
	}

	applied, prior, err := s.repo.Apply(ctx, in, event)
	if err != nil {
		return history.Event{}, err
	}
	if !applied {
		return prior, nil
	}
	return event, nil
}
