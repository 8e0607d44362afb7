package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pet-registry/internal/domain/registry"
)

type registryRepo struct {
	mu     sync.RWMutex
	byCode map[string]registry.PetIdentity
	byID   map[string]string // canonicalId -> petCode

	quarantined []registry.QuarantinedRecord
}

func NewRegistryRepo() registry.Repository {
	return &registryRepo{
		byCode: make(map[string]registry.PetIdentity),
		byID:   make(map[string]string),
	}
}

func (r *registryRepo) Create(ctx context.Context, p registry.PetIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(p.PetCode) == "" {
		return errors.New("pet code required")
	}
	// invariante: una sola identidad por petCode
	if _, exists := r.byCode[p.PetCode]; exists {
		return errors.New("identity already exists")
	}
	r.byCode[p.PetCode] = p
	r.byID[p.CanonicalID] = p.PetCode
	return nil
}

func (r *registryRepo) Update(ctx context.Context, p registry.PetIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[p.PetCode]; !exists {
		return registry.ErrNotFound
	}
	r.byCode[p.PetCode] = p
	return nil
}

func (r *registryRepo) GetByPetCode(ctx context.Context, petCode string) (registry.PetIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byCode[petCode]
	if !ok {
		return registry.PetIdentity{}, registry.ErrNotFound
	}
	return p, nil
}

func (r *registryRepo) GetByCanonicalID(ctx context.Context, id string) (registry.PetIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code, ok := r.byID[id]
	if !ok {
		return registry.PetIdentity{}, registry.ErrNotFound
	}
	return r.byCode[code], nil
}

func (r *registryRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]registry.PetIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]registry.PetIdentity, 0)
	for _, p := range r.byCode {
		if p.OwnerUserID == ownerUserID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ClaimWorkflow: compare-and-swap bajo el mutex. Mismo contrato que la
// versión SQL (UPDATE ... WHERE active_workflow_id = '').
func (r *registryRepo) ClaimWorkflow(ctx context.Context, petCode, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byCode[petCode]
	if !ok {
		return registry.ErrNotFound
	}
	if p.ActiveWorkflowID != "" && p.ActiveWorkflowID != workflowID {
		return registry.ErrAlreadyReserved
	}

	p.ActiveWorkflowID = workflowID
	if p.CurrentStatus == registry.StatusOwned {
		p.CurrentStatus = registry.StatusReserved
	}
	r.byCode[petCode] = p
	return nil
}

func (r *registryRepo) ReleaseWorkflow(ctx context.Context, petCode, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byCode[petCode]
	if !ok {
		return registry.ErrNotFound
	}
	// solo suelta quien tiene el claim
	if p.ActiveWorkflowID != workflowID {
		return nil
	}

	p.ActiveWorkflowID = ""
	if p.CurrentStatus == registry.StatusReserved {
		p.CurrentStatus = registry.StatusOwned
	}
	r.byCode[petCode] = p
	return nil
}

func (r *registryRepo) Quarantine(ctx context.Context, q registry.QuarantinedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// dedupe por (source, sourceId): el mismo registro sucio reaparece
	// en cada resolve hasta que alguien lo arregle
	for _, existing := range r.quarantined {
		if existing.Record.Source == q.Record.Source && existing.Record.SourceID == q.Record.SourceID {
			return nil
		}
	}
	r.quarantined = append(r.quarantined, q)
	return nil
}

func (r *registryRepo) ListQuarantined(ctx context.Context) ([]registry.QuarantinedRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]registry.QuarantinedRecord, len(r.quarantined))
	copy(out, r.quarantined)
	return out, nil
}
