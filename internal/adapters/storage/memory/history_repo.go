package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"pet-registry/internal/domain/history"
)

type historyRepo struct {
	mu     sync.RWMutex
	events []history.Event
}

func NewHistoryRepo() history.Repository {
	return &historyRepo{}
}

func (r *historyRepo) Append(ctx context.Context, e history.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(e.ID) == "" {
		return errors.New("event id required")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *historyRepo) ListByPet(ctx context.Context, petCode string, limit int) ([]history.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// más reciente primero
	out := make([]history.Event, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].PetCode != petCode {
			continue
		}
		out = append(out, r.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *historyRepo) getByID(id string) (history.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.events {
		if e.ID == id {
			return e, true
		}
	}
	return history.Event{}, false
}
