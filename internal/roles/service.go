package roles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hamidscode/role-manager/internal/platform/httpx"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	Insert(ctx context.Context, name string, permissionIDs []string) (Role, error)
	List(ctx context.Context) ([]Role, error)
	GetByID(ctx context.Context, id string) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	FindByNames(ctx context.Context, names []string) ([]Role, error)
	Update(ctx context.Context, id string, patch UpdatePatch) (Role, error)
	Delete(ctx context.Context, id string) (string, error)
}

// PermissionChecker reports which of the given well-formed permission
// ids resolve to stored records, in one batch.
type PermissionChecker interface {
	FilterExisting(ctx context.Context, ids []string) (map[string]struct{}, error)
}

// Invalidator drops the cached resolution keyed by a single role name.
// Combination entries that include the role are left to age out via TTL.
type Invalidator interface {
	InvalidateRole(ctx context.Context, name string) error
}

// Service implements the role registry.
type Service struct {
	repo        RepositoryPort
	perms       PermissionChecker
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds a Service instance. Invalidator may be nil.
func NewService(repo RepositoryPort, perms PermissionChecker, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, perms: perms, invalidator: invalidator, logger: logger}
}

// Create stores a new role after validating every supplied permission
// reference, then invalidates the cache entry keyed by the role's name.
func (s *Service) Create(ctx context.Context, name string, permissionIDs []string) (Role, error) {
	if err := s.validatePermissionIDs(ctx, permissionIDs); err != nil {
		return Role{}, err
	}
	role, err := s.repo.Insert(ctx, name, permissionIDs)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx, role.Name)
	return role, nil
}

// List returns all roles with expanded permissions.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// GetByID fetches a role by id with expanded permissions.
func (s *Service) GetByID(ctx context.Context, id string) (Role, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByName fetches a role by name with expanded permissions.
func (s *Service) GetByName(ctx context.Context, name string) (Role, error) {
	return s.repo.GetByName(ctx, name)
}

// Update applies a partial update, validating permission references
// when supplied, then invalidates the entry keyed by the role's
// (possibly just-changed) name.
func (s *Service) Update(ctx context.Context, id string, patch UpdatePatch) (Role, error) {
	if patch.PermissionIDs != nil {
		if err := s.validatePermissionIDs(ctx, patch.PermissionIDs); err != nil {
			return Role{}, err
		}
	}
	role, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx, role.Name)
	return role, nil
}

// Delete removes a role and invalidates the entry keyed by its former name.
func (s *Service) Delete(ctx context.Context, id string) error {
	name, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, name)
	return nil
}

// validatePermissionIDs checks every reference in one batch while
// preserving the contract that the first invalid id in input order is
// the one named in the error. Malformed ids and missing records differ
// only in message, not in kind.
func (s *Service) validatePermissionIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	firstMalformed := -1
	wellFormed := make([]string, 0, len(ids))
	for i, id := range ids {
		if uuid.Validate(id) != nil {
			firstMalformed = i
			break
		}
		wellFormed = append(wellFormed, id)
	}
	existing, err := s.perms.FilterExisting(ctx, wellFormed)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if i == firstMalformed {
			return fmt.Errorf("invalid permission id: %s: %w", id, httpx.ErrValidation)
		}
		if _, ok := existing[id]; !ok {
			return fmt.Errorf("permission with id %s does not exist: %w", id, httpx.ErrValidation)
		}
	}
	return nil
}

// invalidate runs strictly after the durable write; failures degrade to
// TTL-bounded staleness and are logged, never returned.
func (s *Service) invalidate(ctx context.Context, name string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateRole(ctx, name); err != nil {
		s.logger.Warn("invalidate role cache entry", slog.String("role", name), slog.Any("error", err))
	}
}
