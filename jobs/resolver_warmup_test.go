package jobs

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
	"github.com/hamidscode/role-manager/internal/resolver"
	"github.com/hamidscode/role-manager/internal/roles"
)

type stubRoleSource struct {
	roles map[string]roles.Role
}

func (s *stubRoleSource) FindByNames(ctx context.Context, names []string) ([]roles.Role, error) {
	var out []roles.Role
	for _, name := range names {
		if role, ok := s.roles[name]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func TestResolverWarmupRepopulatesAfterWipe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin": {Name: "admin", Permissions: []permissions.Permission{{ID: "p1", Slug: "users.read"}}},
	}}
	res := resolver.New(source, cache.NewCache(client), slog.Default(), time.Minute)
	ctx := context.Background()

	_, err := res.Resolve(ctx, []string{"admin"})
	require.NoError(t, err)
	require.NoError(t, res.InvalidateAll(ctx))
	require.False(t, mr.Exists(resolver.KeyPrefix+"admin"))

	job := NewResolverWarmupJob(res, slog.Default())
	require.NoError(t, job.Handle(ctx, NewResolverWarmupTask()))
	require.True(t, mr.Exists(resolver.KeyPrefix+"admin"))
}

func TestResolverWarmupSkipsVanishedRoles(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin": {Name: "admin", Permissions: []permissions.Permission{{ID: "p1", Slug: "users.read"}}},
	}}
	res := resolver.New(source, cache.NewCache(client), slog.Default(), time.Minute)
	ctx := context.Background()

	_, err := res.Resolve(ctx, []string{"admin"})
	require.NoError(t, err)

	// All roles in the tracked combination are gone by the time the
	// warmup runs; the job must not fail on the resulting not-found.
	delete(source.roles, "admin")
	require.NoError(t, res.InvalidateAll(ctx))

	job := NewResolverWarmupJob(res, slog.Default())
	require.NoError(t, job.Handle(ctx, NewResolverWarmupTask()))
}

func TestResolverWarmupNoTrackedCombinations(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	res := resolver.New(&stubRoleSource{}, cache.NewCache(client), slog.Default(), time.Minute)
	job := NewResolverWarmupJob(res, slog.Default())
	require.NoError(t, job.Handle(context.Background(), NewResolverWarmupTask()))
}
