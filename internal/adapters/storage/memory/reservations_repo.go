package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pet-registry/internal/domain/reservations"
)

type reservationsRepo struct {
	mu   sync.RWMutex
	byID map[string]reservations.Reservation
}

func NewReservationsRepo() reservations.Repository {
	return &reservationsRepo{
		byID: make(map[string]reservations.Reservation),
	}
}

func (r *reservationsRepo) Create(ctx context.Context, res reservations.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(res.ID) == "" {
		return errors.New("reservation id required")
	}
	if _, exists := r.byID[res.ID]; exists {
		return errors.New("reservation already exists")
	}
	r.byID[res.ID] = res
	return nil
}

func (r *reservationsRepo) GetByID(ctx context.Context, id string) (reservations.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return reservations.Reservation{}, reservations.ErrNotFound
	}
	return res, nil
}

func (r *reservationsRepo) ListByBuyer(ctx context.Context, buyerUserID string) ([]reservations.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reservations.Reservation, 0)
	for _, res := range r.byID {
		if res.BuyerUserID == buyerUserID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *reservationsRepo) ListByStore(ctx context.Context, storeID string) ([]reservations.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reservations.Reservation, 0)
	for _, res := range r.byID {
		if res.StoreID == storeID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateIf: el guard por status esperado, versión in-memory del
// UPDATE ... WHERE status = $expected.
func (r *reservationsRepo) UpdateIf(ctx context.Context, res reservations.Reservation, expected reservations.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[res.ID]
	if !ok {
		return reservations.ErrNotFound
	}
	if current.Status != expected {
		return reservations.ErrStaleState
	}
	r.byID[res.ID] = res
	return nil
}
