package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hamidscode/role-manager/internal/permissions"
	"github.com/hamidscode/role-manager/internal/resolver"
	"github.com/hamidscode/role-manager/internal/roles"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	PermissionsHandler *permissions.Handler
	RolesHandler       *roles.Handler
	ResolveHandler     *resolver.Handler
}

// NewRouter constructs the chi.Router with role-manager defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		r.Route("/roles", func(r chi.Router) {
			params.RolesHandler.MountRoutes(r)
			r.Post("/resolve-permissions", params.ResolveHandler.ResolvePermissions)
		})
	})

	return r
}
