package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

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

type RecordInput struct {
	PetCode         string
	Type            EventType
	PerformedBy     string
	PerformedByRole string
	Metadata        map[string]string
}

// Record arma y persiste un evento. Los workflows llaman esto en cada
// cambio de estado relevante; nunca es condición de éxito del workflow
// salvo en ownership_transferred (ese lo escribe el transfer de forma
// atómica junto al cambio de dueño).
func (s *Service) Record(ctx context.Context, in RecordInput) (Event, error) {
	if strings.TrimSpace(in.PetCode) == "" || in.Type == "" {
		return Event{}, ErrInvalidInput
	}

	e := Event{
		ID:              uuid.NewString(),
		PetCode:         strings.TrimSpace(in.PetCode),
		Type:            in.Type,
		Timestamp:       s.now(),
		PerformedBy:     strings.TrimSpace(in.PerformedBy),
		PerformedByRole: strings.TrimSpace(in.PerformedByRole),
		Metadata:        in.Metadata,
	}

	if err := s.repo.Append(ctx, e); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *Service) ListByPet(ctx context.Context, petCode string, limit int) ([]Event, error) {
	petCode = strings.TrimSpace(petCode)
	if petCode == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListByPet(ctx, petCode, limit)
}
