package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/surveypro/internal/service"
)

// OriginIssuer hands out a storage origin to visitors that lack one.
type OriginIssuer interface {
	EnsureOrigin(w http.ResponseWriter, r *http.Request) (origin string, created bool)
}

// LoginHandler starts a session. There are no credentials: a visitor is
// whoever holds the origin cookie.
type LoginHandler struct {
	origins  OriginIssuer
	profiles service.ProfileService
	logger   *slog.Logger
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(origins OriginIssuer, profiles service.ProfileService, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		origins:  origins,
		profiles: profiles,
		logger:   logger,
	}
}

// RegisterRoutes registers the login routes. withOrigin must run first so
// an existing cookie is reused.
//
// Routes:
// - GET /login -> Login
// - GET /      -> redirect to /surveys
func (h *LoginHandler) RegisterRoutes(mux *http.ServeMux, withOrigin func(http.Handler) http.Handler) {
	mux.Handle("GET /login", withOrigin(http.HandlerFunc(h.Login)))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/surveys", http.StatusSeeOther)
	})
}

// Login issues an origin if needed, makes sure a profile exists and sends
// the visitor back where they came from.
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	origin, created := h.origins.EnsureOrigin(w, r)

	user, err := h.profiles.GetUser(r.Context(), origin)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if created {
		h.logger.Info("session started", "origin", origin, "user_id", user.ID)
	}

	http.Redirect(w, r, safeReturnTo(r.URL.Query().Get("return_to")), http.StatusSeeOther)
}

// safeReturnTo only allows local paths, defaulting to /surveys.
func safeReturnTo(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/surveys"
	}
	if strings.HasPrefix(target, "/login") {
		return "/surveys"
	}
	return target
}
