package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/DukeRupert/surveypro/internal/auth"
	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/service"
	"github.com/DukeRupert/surveypro/internal/templ/pages/packages"
	"github.com/DukeRupert/surveypro/internal/templ/shared"
)

// PackageHandler shows the tiers and switches between them. Switching is
// simulated; no payment is taken.
type PackageHandler struct {
	browse   service.BrowseService
	profiles service.ProfileService
	logger   *slog.Logger
}

// NewPackageHandler creates a new PackageHandler.
func NewPackageHandler(browse service.BrowseService, profiles service.ProfileService, logger *slog.Logger) *PackageHandler {
	return &PackageHandler{
		browse:   browse,
		profiles: profiles,
		logger:   logger,
	}
}

// RegisterRoutes registers the package routes.
//
// Routes:
// - GET  /packages        -> Index
// - POST /packages/{tier} -> Switch
func (h *PackageHandler) RegisterRoutes(mux *http.ServeMux, requireOrigin, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /packages", requireOrigin(http.HandlerFunc(h.Index)))
	mux.Handle("POST /packages/{tier}", requireOrigin(limit(http.HandlerFunc(h.Switch))))
}

// Index lists every package, marking the current one.
func (h *PackageHandler) Index(w http.ResponseWriter, r *http.Request) {
	user, err := h.profiles.GetUser(r.Context(), auth.GetOriginFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	current := domain.GetTierPackage(user.Tier).Tier
	options := packages.Options(current)
	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"current": current, "packages": options})
		return
	}

	data := packages.PageData{
		Layout: shared.LayoutData{
			Title: "Packages",
			Nav:   navFor(user),
			Flash: flashFromQuery(r),
		},
		Current: current,
		Options: options,
	}
	renderComponent(w, r, h.logger, http.StatusOK, packages.Page(data))
}

// Switch moves the user to the tier in the path.
func (h *PackageHandler) Switch(w http.ResponseWriter, r *http.Request) {
	tier := r.PathValue("tier")

	user, err := h.browse.Upgrade(r.Context(), auth.GetOriginFromRequest(r), tier)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, user)
		return
	}
	http.Redirect(w, r, "/packages?switched="+url.QueryEscape(string(user.Tier)), http.StatusSeeOther)
}
