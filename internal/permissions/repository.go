package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hamidscode/role-manager/internal/platform/httpx"
)

const pgUniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for permissions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new permission. A slug collision surfaces as
// httpx.ErrDuplicate.
func (r *Repository) Insert(ctx context.Context, slug string, meta map[string]any) (Permission, error) {
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return Permission{}, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (slug, meta)
		VALUES ($1, $2::jsonb)
		RETURNING id, slug, meta, created_at, updated_at`, slug, metaJSON)
	perm, err := scanPermission(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Permission{}, fmt.Errorf("permission with this slug already exists: %w", httpx.ErrDuplicate)
		}
		return Permission{}, err
	}
	return perm, nil
}

// List returns all permissions ordered by slug.
func (r *Repository) List(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, meta, created_at, updated_at FROM permissions ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// GetByID fetches a permission by id. Malformed ids resolve to not found,
// the same as ids that simply do not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (Permission, error) {
	if uuid.Validate(id) != nil {
		return Permission{}, fmt.Errorf("permission with id %s not found: %w", id, httpx.ErrNotFound)
	}
	row := r.pool.QueryRow(ctx, `SELECT id, slug, meta, created_at, updated_at FROM permissions WHERE id = $1`, id)
	perm, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("permission with id %s not found: %w", id, httpx.ErrNotFound)
		}
		return Permission{}, err
	}
	return perm, nil
}

// GetBySlug fetches a permission by its slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, slug, meta, created_at, updated_at FROM permissions WHERE slug = $1`, slug)
	perm, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("permission with slug %s not found: %w", slug, httpx.ErrNotFound)
		}
		return Permission{}, err
	}
	return perm, nil
}

// Update applies a partial update and returns the new record state.
func (r *Repository) Update(ctx context.Context, id string, patch UpdatePatch) (Permission, error) {
	if uuid.Validate(id) != nil {
		return Permission{}, fmt.Errorf("permission with id %s not found: %w", id, httpx.ErrNotFound)
	}
	var metaJSON *string
	if patch.Meta != nil {
		raw, err := marshalMeta(patch.Meta)
		if err != nil {
			return Permission{}, err
		}
		metaJSON = &raw
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE permissions
		SET slug = COALESCE($2, slug),
		    meta = COALESCE($3::jsonb, meta),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, slug, meta, created_at, updated_at`, id, patch.Slug, metaJSON)
	perm, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("permission with id %s not found: %w", id, httpx.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return Permission{}, fmt.Errorf("permission with this slug already exists: %w", httpx.ErrDuplicate)
		}
		return Permission{}, err
	}
	return perm, nil
}

// Delete removes a permission by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return fmt.Errorf("permission with id %s not found: %w", id, httpx.ErrNotFound)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("permission with id %s not found: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// FilterExisting returns the subset of the given ids that resolve to a
// stored permission. Callers must pass well-formed uuids.
func (r *Repository) FilterExisting(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM permissions WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return existing, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPermission(row rowScanner) (Permission, error) {
	var (
		perm    Permission
		metaRaw []byte
	)
	if err := row.Scan(&perm.ID, &perm.Slug, &metaRaw, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
		return Permission{}, err
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &perm.Meta); err != nil {
			return Permission{}, fmt.Errorf("decode permission meta: %w", err)
		}
	}
	if perm.Meta == nil {
		perm.Meta = map[string]any{}
	}
	return perm, nil
}

func marshalMeta(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode permission meta: %w", err)
	}
	return string(raw), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
