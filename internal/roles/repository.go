package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hamidscode/role-manager/internal/permissions"
	"github.com/hamidscode/role-manager/internal/platform/httpx"
)

const pgUniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for roles. Every
// read expands permission references into full records; references to
// deleted permissions are skipped, never reported as errors.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new role. A name collision surfaces as httpx.ErrDuplicate.
func (r *Repository) Insert(ctx context.Context, name string, permissionIDs []string) (Role, error) {
	if permissionIDs == nil {
		permissionIDs = []string{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, permission_ids)
		VALUES ($1, $2::uuid[])
		RETURNING id, name, permission_ids, created_at, updated_at`, name, permissionIDs)
	role, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("role with this name already exists: %w", httpx.ErrDuplicate)
		}
		return Role{}, err
	}
	return r.expandOne(ctx, role)
}

// List returns all roles with expanded permissions, ordered by name.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	return r.queryRoles(ctx, `SELECT id, name, permission_ids, created_at, updated_at FROM roles ORDER BY name`)
}

// GetByID fetches a role by id with expanded permissions.
func (r *Repository) GetByID(ctx context.Context, id string) (Role, error) {
	if uuid.Validate(id) != nil {
		return Role{}, fmt.Errorf("role with id %s not found: %w", id, httpx.ErrNotFound)
	}
	row := r.pool.QueryRow(ctx, `SELECT id, name, permission_ids, created_at, updated_at FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role with id %s not found: %w", id, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	return r.expandOne(ctx, role)
}

// GetByName fetches a role by its unique name with expanded permissions.
func (r *Repository) GetByName(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, permission_ids, created_at, updated_at FROM roles WHERE name = $1`, name)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role with name %s not found: %w", name, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	return r.expandOne(ctx, role)
}

// FindByNames loads every role whose name is in the given set in one
// batch, with expanded permissions. Unknown names are simply absent
// from the result.
func (r *Repository) FindByNames(ctx context.Context, names []string) ([]Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return r.queryRoles(ctx, `SELECT id, name, permission_ids, created_at, updated_at FROM roles WHERE name = ANY($1)`, names)
}

// Update applies a partial update and returns the new record state with
// expanded permissions.
func (r *Repository) Update(ctx context.Context, id string, patch UpdatePatch) (Role, error) {
	if uuid.Validate(id) != nil {
		return Role{}, fmt.Errorf("role with id %s not found: %w", id, httpx.ErrNotFound)
	}
	var idsParam any
	if patch.PermissionIDs != nil {
		idsParam = patch.PermissionIDs
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = COALESCE($2, name),
		    permission_ids = COALESCE($3::uuid[], permission_ids),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, permission_ids, created_at, updated_at`, id, patch.Name, idsParam)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role with id %s not found: %w", id, httpx.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("role with this name already exists: %w", httpx.ErrDuplicate)
		}
		return Role{}, err
	}
	return r.expandOne(ctx, role)
}

// Delete removes a role by id and returns its former name so the
// caller can invalidate the matching cache entry.
func (r *Repository) Delete(ctx context.Context, id string) (string, error) {
	if uuid.Validate(id) != nil {
		return "", fmt.Errorf("role with id %s not found: %w", id, httpx.ErrNotFound)
	}
	var name string
	err := r.pool.QueryRow(ctx, `DELETE FROM roles WHERE id = $1 RETURNING name`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("role with id %s not found: %w", id, httpx.ErrNotFound)
		}
		return "", err
	}
	return name, nil
}

func (r *Repository) queryRoles(ctx context.Context, query string, args ...any) ([]Role, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.expand(ctx, out)
}

// expand resolves permission references across all given roles with a
// single batch lookup. Dangling ids contribute nothing.
func (r *Repository) expand(ctx context.Context, rs []Role) ([]Role, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, role := range rs {
		for _, id := range role.PermissionIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return rs, nil
	}
	perms, err := r.permsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rs {
		expanded := make([]permissions.Permission, 0, len(rs[i].PermissionIDs))
		for _, id := range rs[i].PermissionIDs {
			if p, ok := perms[id]; ok {
				expanded = append(expanded, p)
			}
		}
		rs[i].Permissions = expanded
	}
	return rs, nil
}

func (r *Repository) expandOne(ctx context.Context, role Role) (Role, error) {
	out, err := r.expand(ctx, []Role{role})
	if err != nil {
		return Role{}, err
	}
	return out[0], nil
}

func (r *Repository) permsByIDs(ctx context.Context, ids []string) (map[string]permissions.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, meta, created_at, updated_at FROM permissions WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]permissions.Permission, len(ids))
	for rows.Next() {
		var (
			p       permissions.Permission
			metaRaw []byte
		)
		if err := rows.Scan(&p.ID, &p.Slug, &metaRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Meta = decodeMeta(metaRaw)
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeMeta(raw []byte) map[string]any {
	meta := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta
}

func scanRole(row interface{ Scan(dest ...any) error }) (Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.PermissionIDs, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	if role.PermissionIDs == nil {
		role.PermissionIDs = []string{}
	}
	return role, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
