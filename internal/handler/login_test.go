package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/surveypro/internal/kv"
	"github.com/DukeRupert/surveypro/internal/service"
)

type fixedIssuer struct {
	origin string
	issued int
}

func (f *fixedIssuer) EnsureOrigin(w http.ResponseWriter, r *http.Request) (string, bool) {
	f.issued++
	return f.origin, f.issued == 1
}

func TestLoginHandler_Login(t *testing.T) {
	store := kv.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	profiles := service.NewProfileService(store, discardLogger())
	issuer := &fixedIssuer{origin: testOrigin}

	mux := http.NewServeMux()
	passthrough := func(next http.Handler) http.Handler { return next }
	NewLoginHandler(issuer, profiles, discardLogger()).RegisterRoutes(mux, passthrough)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?return_to=/packages", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/packages", rec.Header().Get("Location"))

	_, found, err := store.Get(t.Context(), testOrigin, kv.KeyUser)
	require.NoError(t, err)
	assert.True(t, found, "a default profile is created on login")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "/surveys", rec.Header().Get("Location"))
}

func TestSafeReturnTo(t *testing.T) {
	tests := map[string]string{
		"":                     "/surveys",
		"/surveys/7":           "/surveys/7",
		"/packages?switched=1": "/packages?switched=1",
		"https://evil.example": "/surveys",
		"//evil.example/path":  "/surveys",
		"/\\evil.example":      "/surveys",
		"/login?return_to=/x":  "/surveys",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeReturnTo(in), "return_to=%q", in)
	}
}
