package resolver

import (
	"context"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hamidscode/role-manager/internal/permissions"
	"github.com/hamidscode/role-manager/internal/platform/cache"
	"github.com/hamidscode/role-manager/internal/platform/httpx"
	"github.com/hamidscode/role-manager/internal/roles"
)

type stubRoleSource struct {
	roles map[string]roles.Role
	calls int
}

func (s *stubRoleSource) FindByNames(ctx context.Context, names []string) ([]roles.Role, error) {
	s.calls++
	var out []roles.Role
	for _, name := range names {
		if role, ok := s.roles[name]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func roleWithSlugs(name string, slugs ...string) roles.Role {
	perms := make([]permissions.Permission, 0, len(slugs))
	ids := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		perms = append(perms, permissions.Permission{ID: slug + "-id", Slug: slug})
		ids = append(ids, slug+"-id")
	}
	return roles.Role{ID: name + "-id", Name: name, PermissionIDs: ids, Permissions: perms}
}

func newTestResolver(t *testing.T, source RoleSource) (*Resolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	res := New(source, cache.NewCache(client), slog.Default(), time.Minute)
	return res, mr
}

func TestResolveUnionScenario(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin":  roleWithSlugs("admin", "users.read", "users.write"),
		"editor": roleWithSlugs("editor", "users.read", "posts.write"),
	}}
	res, _ := newTestResolver(t, source)

	slugs, err := res.Resolve(context.Background(), []string{"admin", "editor"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"users.read", "users.write", "posts.write"}, slugs)
	require.Len(t, slugs, 3)
}

func TestResolveOrderIndependence(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin":  roleWithSlugs("admin", "users.read", "users.write"),
		"editor": roleWithSlugs("editor", "posts.write"),
	}}
	res, mr := newTestResolver(t, source)

	first, err := res.Resolve(context.Background(), []string{"admin", "editor"})
	require.NoError(t, err)
	second, err := res.Resolve(context.Background(), []string{"editor", "admin"})
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Both orderings share one cache entry and one store read.
	require.Equal(t, 1, source.calls)
	require.True(t, mr.Exists(KeyPrefix+"admin,editor"))
}

func TestResolveCollapsesDuplicateNames(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin": roleWithSlugs("admin", "users.read"),
	}}
	res, _ := newTestResolver(t, source)

	single, err := res.Resolve(context.Background(), []string{"admin"})
	require.NoError(t, err)
	doubled, err := res.Resolve(context.Background(), []string{"admin", "admin"})
	require.NoError(t, err)
	require.Equal(t, single, doubled)
	require.Equal(t, 1, source.calls)
}

func TestResolveEmptyInputSkipsStoreAndCache(t *testing.T) {
	source := &stubRoleSource{}
	res, mr := newTestResolver(t, source)

	slugs, err := res.Resolve(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, slugs)
	require.Equal(t, 0, source.calls)
	require.Empty(t, mr.Keys())
}

func TestResolveIdempotent(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin": roleWithSlugs("admin", "users.read", "users.write"),
	}}
	res, _ := newTestResolver(t, source)

	first, err := res.Resolve(context.Background(), []string{"admin"})
	require.NoError(t, err)
	second, err := res.Resolve(context.Background(), []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, source.calls)
}

func TestResolveUnknownRolesNotFound(t *testing.T) {
	source := &stubRoleSource{}
	res, _ := newTestResolver(t, source)

	_, err := res.Resolve(context.Background(), []string{"nonexistent-role"})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestResolveDanglingReferencesContributeNothing(t *testing.T) {
	role := roleWithSlugs("admin", "users.read")
	// Reference whose target permission is gone: present in the id list,
	// absent from the expanded records.
	role.PermissionIDs = append(role.PermissionIDs, "deleted-perm-id")
	source := &stubRoleSource{roles: map[string]roles.Role{"admin": role}}
	res, _ := newTestResolver(t, source)

	slugs, err := res.Resolve(context.Background(), []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, []string{"users.read"}, slugs)
}

func TestResolveCachedEntryHasTTL(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin": roleWithSlugs("admin", "users.read"),
	}}
	res, mr := newTestResolver(t, source)

	_, err := res.Resolve(context.Background(), []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, time.Minute, mr.TTL(KeyPrefix+"admin"))
}

func TestResolveSurvivesCacheOutage(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin": roleWithSlugs("admin", "users.read"),
	}}
	res, mr := newTestResolver(t, source)
	mr.Close()

	slugs, err := res.Resolve(context.Background(), []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, []string{"users.read"}, slugs)

	// Every call degrades to a miss; none serve stale data.
	_, err = res.Resolve(context.Background(), []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestInvalidateRoleTargetsSingleEntry(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin":  roleWithSlugs("admin", "users.read"),
		"editor": roleWithSlugs("editor", "posts.write"),
	}}
	res, mr := newTestResolver(t, source)
	ctx := context.Background()

	_, err := res.Resolve(ctx, []string{"admin"})
	require.NoError(t, err)
	_, err = res.Resolve(ctx, []string{"admin", "editor"})
	require.NoError(t, err)

	require.NoError(t, res.InvalidateRole(ctx, "admin"))

	// Only the single-name key is dropped; the combination entry stays
	// until TTL expiry. This mirrors the registry's narrow invalidation.
	require.False(t, mr.Exists(KeyPrefix+"admin"))
	require.True(t, mr.Exists(KeyPrefix+"admin,editor"))
}

func TestInvalidateAllWipesNamespaceOnly(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin":  roleWithSlugs("admin", "users.read"),
		"editor": roleWithSlugs("editor", "posts.write"),
	}}
	res, mr := newTestResolver(t, source)
	ctx := context.Background()

	_, err := res.Resolve(ctx, []string{"admin"})
	require.NoError(t, err)
	_, err = res.Resolve(ctx, []string{"admin", "editor"})
	require.NoError(t, err)

	require.NoError(t, res.InvalidateAll(ctx))

	require.False(t, mr.Exists(KeyPrefix+"admin"))
	require.False(t, mr.Exists(KeyPrefix+"admin,editor"))
	// The warmup index lives outside the namespace and survives.
	require.True(t, mr.Exists(RecentSetsKey))
}

func TestResolveRefreshesAfterInvalidation(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin": roleWithSlugs("admin", "users.read"),
	}}
	res, _ := newTestResolver(t, source)
	ctx := context.Background()

	slugs, err := res.Resolve(ctx, []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, []string{"users.read"}, slugs)

	// Simulate a permission mutation: store state changes, then the
	// registry invalidates the namespace.
	source.roles["admin"] = roleWithSlugs("admin", "users.read", "users.write")
	require.NoError(t, res.InvalidateAll(ctx))

	slugs, err = res.Resolve(ctx, []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, []string{"users.read", "users.write"}, slugs)
}

func TestCacheKeyCanonicalForm(t *testing.T) {
	require.Equal(t, KeyPrefix+"admin,editor", CacheKey([]string{"editor", "admin", "editor"}))
	require.Equal(t, KeyPrefix+"admin", CacheKey([]string{"admin", "admin"}))
}

func TestRecentSetsTracksCombinations(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin":  roleWithSlugs("admin", "users.read"),
		"editor": roleWithSlugs("editor", "posts.write"),
	}}
	res, _ := newTestResolver(t, source)
	ctx := context.Background()

	_, err := res.Resolve(ctx, []string{"editor", "admin"})
	require.NoError(t, err)

	sets, err := res.RecentSets(ctx)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"admin", "editor"}}, sets)
}
