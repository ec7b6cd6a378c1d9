package resolver

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hamidscode/role-manager/internal/platform/httpx"
)

// Handler exposes permission resolution over HTTP.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver, validate: validator.New()}
}

type resolveRequest struct {
	// An empty list is a valid request and resolves to no permissions;
	// individual names must be non-empty strings.
	RoleNames []string `json:"roleNames" validate:"omitempty,dive,required"`
}

type resolveResponse struct {
	Permissions []string `json:"permissions"`
}

// ResolvePermissions handles POST /api/roles/resolve-permissions.
func (h *Handler) ResolvePermissions(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	slugs, err := h.resolver.Resolve(r.Context(), req.RoleNames)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolveResponse{Permissions: slugs})
}
