package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/surveypro/internal/csrf"
	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/handler"
)

// maxFormBytes caps form bodies read while checking the token.
const maxFormBytes = 64 << 10

// CSRFMiddleware issues the CSRF cookie and checks it on state-changing
// requests.
type CSRFMiddleware struct {
	logger   *slog.Logger
	isSecure bool
}

// NewCSRFMiddleware creates a new CSRFMiddleware.
func NewCSRFMiddleware(logger *slog.Logger, isSecure bool) *CSRFMiddleware {
	return &CSRFMiddleware{
		logger:   logger,
		isSecure: isSecure,
	}
}

// Protect makes sure every request has a token and exposes it to the page
// templates. POST, PUT, PATCH and DELETE must echo the token in the form or
// the X-CSRF-Token header, unless the body is JSON: a browser cannot send a
// cross-site JSON body without a CORS preflight, which the server never
// grants.
func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := csrf.EnsureToken(w, r, m.isSecure)
		if err != nil {
			handler.InternalErrorResponse(w, r, m.logger, err)
			return
		}
		r = r.WithContext(csrf.WithToken(r.Context(), token))

		if isSafeMethod(r.Method) || isJSONBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if !csrf.ValidateRequest(r) {
			m.logger.Warn("csrf check failed",
				"method", r.Method,
				"path", r.URL.Path,
				"ip", getClientIP(r),
			)
			handler.ErrorResponse(w, r, m.logger,
				domain.Forbidden("csrf.validate", "This form has expired. Reload the page and try again."))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
