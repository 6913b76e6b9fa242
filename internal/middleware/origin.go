// Package middleware contains HTTP middleware for the survey server.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/DukeRupert/surveypro/internal/auth"
	"github.com/DukeRupert/surveypro/internal/handler"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// OriginCookieName is the cookie that carries the storage origin.
	OriginCookieName = "surveypro_origin"

	// OriginCookiePath ensures the cookie is sent with all requests.
	OriginCookiePath = "/"

	// OriginCookieMaxAge keeps an origin for a year (in seconds).
	OriginCookieMaxAge = 365 * 24 * 60 * 60
)

// =============================================================================
// Origin Middleware
// =============================================================================

// OriginMiddleware resolves the storage origin of each request from its
// cookie. Everything a client stores lives under that origin.
type OriginMiddleware struct {
	logger   *slog.Logger
	isSecure bool // Secure flag on the cookie (true in production)
}

// NewOriginMiddleware creates a new OriginMiddleware.
func NewOriginMiddleware(logger *slog.Logger, isSecure bool) *OriginMiddleware {
	return &OriginMiddleware{
		logger:   logger,
		isSecure: isSecure,
	}
}

// WithOrigin stores the cookie's origin in the request context when the
// cookie holds a well-formed id. It always calls next.
func (m *OriginMiddleware) WithOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(OriginCookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if !auth.ValidOrigin(cookie.Value) {
			m.logger.Debug("ignoring malformed origin cookie", "path", r.URL.Path)
			ClearOriginCookie(w, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithOrigin(r.Context(), cookie.Value)))
	})
}

// RequireOrigin rejects requests without an origin: API clients get a 401,
// browsers are sent to /login and brought back afterwards.
func (m *OriginMiddleware) RequireOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetOriginFromRequest(r) != "" {
			next.ServeHTTP(w, r)
			return
		}

		if isAPIRequest(r) {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		returnTo := r.URL.Path
		if r.URL.RawQuery != "" {
			returnTo += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, "/login?return_to="+url.QueryEscape(returnTo), http.StatusSeeOther)
	})
}

// EnsureOrigin returns the request's origin, issuing a new one in a cookie
// when there is none.
func (m *OriginMiddleware) EnsureOrigin(w http.ResponseWriter, r *http.Request) (origin string, created bool) {
	if origin := auth.GetOriginFromRequest(r); origin != "" {
		return origin, false
	}
	origin = auth.NewOrigin()
	SetOriginCookie(w, origin, m.isSecure)
	m.logger.Info("issued storage origin", "ip", getClientIP(r))
	return origin, true
}

// =============================================================================
// Cookie Helpers
// =============================================================================

// SetOriginCookie writes the origin cookie.
func SetOriginCookie(w http.ResponseWriter, origin string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     OriginCookieName,
		Value:    origin,
		Path:     OriginCookiePath,
		MaxAge:   OriginCookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearOriginCookie deletes the origin cookie.
func ClearOriginCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     OriginCookieName,
		Value:    "",
		Path:     OriginCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// =============================================================================
// Helpers
// =============================================================================

// isAPIRequest reports whether the client expects JSON rather than a page.
func isAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// Stack composes middlewares; the first one listed runs first.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
