package resolver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hamidscode/role-manager/internal/platform/cache"
	"github.com/hamidscode/role-manager/internal/roles"
)

func newTestHandler(t *testing.T, source RoleSource) *Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	res := New(source, cache.NewCache(client), slog.Default(), time.Minute)
	return NewHandler(slog.Default(), res)
}

func postResolve(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/roles/resolve-permissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ResolvePermissions(rec, req)
	return rec
}

func TestResolveEndpoint(t *testing.T) {
	source := &stubRoleSource{roles: map[string]roles.Role{
		"admin": roleWithSlugs("admin", "users.read", "users.write"),
	}}
	h := newTestHandler(t, source)

	rec := postResolve(t, h, `{"roleNames":["admin"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.ElementsMatch(t, []string{"users.read", "users.write"}, resp.Permissions)
}

func TestResolveEndpointEmptyInput(t *testing.T) {
	h := newTestHandler(t, &stubRoleSource{})

	rec := postResolve(t, h, `{"roleNames":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"permissions":[]}`, rec.Body.String())
}

func TestResolveEndpointRejectsEmptyName(t *testing.T) {
	h := newTestHandler(t, &stubRoleSource{})

	rec := postResolve(t, h, `{"roleNames":["admin",""]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveEndpointUnknownRoles(t *testing.T) {
	h := newTestHandler(t, &stubRoleSource{})

	rec := postResolve(t, h, `{"roleNames":["ghost"]}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveEndpointMalformedBody(t *testing.T) {
	h := newTestHandler(t, &stubRoleSource{})

	rec := postResolve(t, h, `{"roleNames":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
