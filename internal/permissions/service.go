package permissions

import (
	"context"
	"log/slog"
)

// RepositoryPort defines data access methods for permissions.
type RepositoryPort interface {
	Insert(ctx context.Context, slug string, meta map[string]any) (Permission, error)
	List(ctx context.Context) ([]Permission, error)
	GetByID(ctx context.Context, id string) (Permission, error)
	GetBySlug(ctx context.Context, slug string) (Permission, error)
	Update(ctx context.Context, id string, patch UpdatePatch) (Permission, error)
	Delete(ctx context.Context, id string) error
}

// Invalidator drops every cached resolution. Any role anywhere may
// reference a permission, so permission mutations cannot target
// individual cache entries.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// WarmupEnqueuer schedules background re-resolution of recently queried
// role combinations after a global invalidation.
type WarmupEnqueuer interface {
	EnqueueResolverWarmup(ctx context.Context) error
}

// Service implements the permission registry.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	warmup      WarmupEnqueuer
	logger      *slog.Logger
}

// NewService builds a Service instance. Invalidator and warmup may be
// nil; mutations then skip the corresponding side effect.
func NewService(repo RepositoryPort, invalidator Invalidator, warmup WarmupEnqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, warmup: warmup, logger: logger}
}

// Create stores a new permission and invalidates all cached resolutions.
func (s *Service) Create(ctx context.Context, slug string, meta map[string]any) (Permission, error) {
	perm, err := s.repo.Insert(ctx, slug, meta)
	if err != nil {
		return Permission{}, err
	}
	s.invalidateAll(ctx)
	return perm, nil
}

// List returns all permissions.
func (s *Service) List(ctx context.Context) ([]Permission, error) {
	return s.repo.List(ctx)
}

// GetByID fetches a permission by id.
func (s *Service) GetByID(ctx context.Context, id string) (Permission, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySlug fetches a permission by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Permission, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// Update applies a partial update and invalidates all cached resolutions.
func (s *Service) Update(ctx context.Context, id string, patch UpdatePatch) (Permission, error) {
	perm, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Permission{}, err
	}
	s.invalidateAll(ctx)
	return perm, nil
}

// Delete removes a permission and invalidates all cached resolutions.
// Roles keep any reference to the removed id; the resolver skips it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

// invalidateAll runs strictly after the durable write. A failed
// invalidation leaves entries to age out via TTL, so it is logged and
// never propagated to the caller.
func (s *Service) invalidateAll(ctx context.Context) {
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateAll(ctx); err != nil {
			s.logger.Warn("invalidate resolution cache", slog.Any("error", err))
			return
		}
	}
	if s.warmup != nil {
		if err := s.warmup.EnqueueResolverWarmup(ctx); err != nil {
			s.logger.Warn("enqueue resolver warmup", slog.Any("error", err))
		}
	}
}
