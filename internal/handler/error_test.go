package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/surveypro/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.EQUOTA, http.StatusTooManyRequests},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something-else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponse_QuotaJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/surveys/s-1/complete", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, discardLogger(), domain.QuotaExceeded("quota.ensure_not_completed", 5))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.EQUOTA, body.Error.Code)
	assert.Equal(t, "You have reached your daily limit of 5 surveys.", body.Error.Message)
	assert.NotContains(t, rec.Body.String(), "quota.ensure_not_completed", "op stays internal")
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	internalErr := domain.Internal(
		errors.New(`dial tcp 10.0.0.7:6379: connect: connection refused`),
		"profile.get_user", "failed to read user profile",
	)

	for _, accept := range []string{"text/html", "application/json"} {
		t.Run(accept, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/surveys", nil)
			req.Header.Set("Accept", accept)
			rec := httptest.NewRecorder()

			ErrorResponse(rec, req, discardLogger(), internalErr)

			body := rec.Body.String()
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, body, "10.0.0.7")
			assert.NotContains(t, body, "profile.get_user")
			assert.Contains(t, body, "internal error")
		})
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	req := httptest.NewRequest("GET", "/surveys", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, discardLogger(), errors.New("FATAL: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "FATAL")
}

func TestValidationErrorResponse_JSON(t *testing.T) {
	ve := domain.NewValidationError("profile.set_user", "balance", "Balance must be a number")

	req := httptest.NewRequest("PATCH", "/api/me", nil)
	rec := httptest.NewRecorder()
	ValidationErrorResponse(rec, req, discardLogger(), ve)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Balance must be a number", body.Error.Fields["balance"])
	assert.NotContains(t, rec.Body.String(), "profile.set_user")
}

func TestValidationErrorResponse_HTML(t *testing.T) {
	ve := domain.NewValidationError("profile.set_user", "name", "Name is required")

	req := httptest.NewRequest("POST", "/profile", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	ValidationErrorResponse(rec, req, discardLogger(), ve)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "check your input")
}
