// Package resolver turns a set of role names into the deduplicated set
// of permission slugs those roles grant, with a Redis read-through
// cache in front of the role registry. It also owns the cache key
// namespace, so the registries invalidate through it rather than
// touching keys directly.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hamidscode/role-manager/internal/platform/cache"
	"github.com/hamidscode/role-manager/internal/platform/httpx"
	"github.com/hamidscode/role-manager/internal/roles"
)

const (
	// KeyPrefix scopes every resolution entry so permission mutations
	// can invalidate the whole namespace with one pattern delete.
	KeyPrefix = "role:permissions:"

	// RecentSetsKey tracks recently resolved role combinations for the
	// warmup job. It lives outside KeyPrefix so a namespace wipe does
	// not erase it.
	RecentSetsKey = "resolver:recent"

	keyDelimiter = ","
	recentTTL    = 24 * time.Hour
)

// DefaultTTL bounds staleness when an invalidation never reaches an entry.
const DefaultTTL = 5 * time.Minute

// RoleSource loads roles by name in one batch, with permission
// references expanded. Names without a matching role are absent from
// the result.
type RoleSource interface {
	FindByNames(ctx context.Context, names []string) ([]roles.Role, error)
}

// Resolver computes permission sets for role-name sets.
type Resolver struct {
	source RoleSource
	cache  *cache.Cache
	logger *slog.Logger
	ttl    time.Duration
	group  singleflight.Group
}

// New builds a Resolver. A zero ttl falls back to DefaultTTL.
func New(source RoleSource, c *cache.Cache, logger *slog.Logger, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{source: source, cache: c, logger: logger, ttl: ttl}
}

// CacheKey derives the cache key for a set of role names: distinct
// names, sorted lexicographically, joined and prefixed. The key is
// therefore independent of input order and duplicates.
func CacheKey(roleNames []string) string {
	return KeyPrefix + strings.Join(canonical(roleNames), keyDelimiter)
}

// Resolve returns the sorted, deduplicated permission slugs granted by
// the given role names. An empty input resolves to an empty set without
// touching the cache or the store. When none of the names match a
// stored role the call fails with a not-found error.
//
// The cache is strictly an optimization: any cache failure degrades to
// a miss (or an uncached result), never to an error or a stale read
// beyond the TTL window.
func (r *Resolver) Resolve(ctx context.Context, roleNames []string) ([]string, error) {
	names := canonical(roleNames)
	if len(names) == 0 {
		return []string{}, nil
	}
	key := KeyPrefix + strings.Join(names, keyDelimiter)

	if slugs, ok := r.fromCache(ctx, key); ok {
		return slugs, nil
	}

	// Concurrent misses for the same key compute the same value, so
	// collapsing them in-process is purely a load optimization.
	ch := r.group.DoChan(key, func() (any, error) {
		return r.computeAndStore(ctx, key, names)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

func (r *Resolver) fromCache(ctx context.Context, key string) ([]string, bool) {
	payload, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.Miss) {
			r.logger.Warn("resolution cache read", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	var slugs []string
	if err := json.Unmarshal([]byte(payload), &slugs); err != nil {
		r.logger.Warn("decode cached resolution", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return slugs, true
}

func (r *Resolver) computeAndStore(ctx context.Context, key string, names []string) ([]string, error) {
	matched, err := r.source.FindByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("no roles found with the provided names: %w", httpx.ErrNotFound)
	}

	set := make(map[string]struct{})
	for _, role := range matched {
		for _, perm := range role.Permissions {
			set[perm.Slug] = struct{}{}
		}
	}
	slugs := make([]string, 0, len(set))
	for slug := range set {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	payload, err := json.Marshal(slugs)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, string(payload), r.ttl); err != nil {
		r.logger.Warn("resolution cache write", slog.String("key", key), slog.Any("error", err))
	}
	if err := r.cache.SAddEx(ctx, RecentSetsKey, recentTTL, strings.Join(names, keyDelimiter)); err != nil {
		r.logger.Warn("track resolved combination", slog.Any("error", err))
	}
	return slugs, nil
}

// InvalidateAll drops every cached resolution. Used after permission
// mutations, since any cached combination may include the changed slug.
func (r *Resolver) InvalidateAll(ctx context.Context) error {
	return r.cache.DelPattern(ctx, KeyPrefix+"*")
}

// InvalidateRole drops the entry keyed by a single role name. Entries
// for combinations containing the role are intentionally left alone and
// age out via TTL; see the warmup job for how hot combinations recover.
func (r *Resolver) InvalidateRole(ctx context.Context, name string) error {
	return r.cache.Del(ctx, KeyPrefix+name)
}

// RecentSets returns the tracked role combinations, each as a list of
// role names, for warmup re-resolution.
func (r *Resolver) RecentSets(ctx context.Context) ([][]string, error) {
	combos, err := r.cache.SMembers(ctx, RecentSetsKey)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(combos))
	for _, combo := range combos {
		if combo == "" {
			continue
		}
		out = append(out, strings.Split(combo, keyDelimiter))
	}
	return out, nil
}

// canonical returns the distinct role names sorted lexicographically.
func canonical(roleNames []string) []string {
	seen := make(map[string]struct{}, len(roleNames))
	out := make([]string, 0, len(roleNames))
	for _, name := range roleNames {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
