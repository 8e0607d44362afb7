package registry

import (
	"context"
	"strings"
)

// Service expone el camino de lectura del registry. Los workflows no
// pasan por acá: hablan directo con el Repository (claims atómicos).
type Service struct {
	resolver *Resolver
	repo     Repository
}

func NewService(resolver *Resolver, repo Repository) *Service {
	return &Service{
		resolver: resolver,
		repo:     repo,
	}
}

// GetByPetCode resuelve on-read: consulta los orígenes, mergea y
// devuelve la identidad canónica actualizada.
func (s *Service) GetByPetCode(ctx context.Context, code string) (PetIdentity, error) {
	return s.resolver.Resolve(ctx, code)
}

func (s *Service) GetByCanonicalID(ctx context.Context, id string) (PetIdentity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PetIdentity{}, ErrNotFound
	}
	return s.repo.GetByCanonicalID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, userID string) ([]PetIdentity, error) {
	return s.resolver.ResolveOwner(ctx, userID)
}

// ListQuarantined: registros pendientes de reconciliación manual.
func (s *Service) ListQuarantined(ctx context.Context) ([]QuarantinedRecord, error) {
	return s.repo.ListQuarantined(ctx)
}
