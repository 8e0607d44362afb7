package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pet-registry/internal/domain/adoptions"
)

type adoptionsRepo struct {
	mu   sync.RWMutex
	byID map[string]adoptions.Application
}

func NewAdoptionsRepo() adoptions.Repository {
	return &adoptionsRepo{
		byID: make(map[string]adoptions.Application),
	}
}

func (r *adoptionsRepo) Create(ctx context.Context, a adoptions.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(a.ID) == "" {
		return errors.New("application id required")
	}
	if _, exists := r.byID[a.ID]; exists {
		return errors.New("application already exists")
	}
	r.byID[a.ID] = a
	return nil
}

func (r *adoptionsRepo) GetByID(ctx context.Context, id string) (adoptions.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return adoptions.Application{}, adoptions.ErrNotFound
	}
	return a, nil
}

func (r *adoptionsRepo) ListByApplicant(ctx context.Context, applicantUserID string) ([]adoptions.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]adoptions.Application, 0)
	for _, a := range r.byID {
		if a.ApplicantUserID == applicantUserID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *adoptionsRepo) ListPending(ctx context.Context) ([]adoptions.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]adoptions.Application, 0)
	for _, a := range r.byID {
		if a.Status == adoptions.StatusPending {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *adoptionsRepo) UpdateIf(ctx context.Context, a adoptions.Application, expected adoptions.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[a.ID]
	if !ok {
		return adoptions.ErrNotFound
	}
	if current.Status != expected {
		return adoptions.ErrStaleState
	}
	r.byID[a.ID] = a
	return nil
}
