package permissions

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *memoryPermsRepo) {
	t.Helper()
	repo := newMemoryPermsRepo()
	svc := NewService(repo, nil, nil, slog.Default())
	h := NewHandler(slog.Default(), svc)
	r := chi.NewRouter()
	r.Route("/api/permissions", h.MountRoutes)
	return r, repo
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreatePermissionEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/permissions/", `{"slug":"users.read","meta":{"group":"users"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID   string         `json:"id"`
		Slug string         `json:"slug"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.Equal(t, "users.read", resp.Slug)
	require.Equal(t, map[string]any{"group": "users"}, resp.Meta)
}

func TestCreatePermissionConflict(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/permissions/", `{"slug":"users.read"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/permissions/", `{"slug":"users.read"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreatePermissionMissingSlug(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/permissions/", `{"meta":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPermissionNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/permissions/ghost", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/permissions/slug/ghost.read", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAndDeletePermissionEndpoints(t *testing.T) {
	r, repo := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/permissions/", `{"slug":"users.read"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, r, http.MethodPatch, "/api/permissions/"+created.ID, `{"slug":"users.view"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "users.view", repo.byID[created.ID].Slug)

	rec = doJSON(t, r, http.MethodDelete, "/api/permissions/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, "/api/permissions/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
