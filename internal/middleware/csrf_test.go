package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/surveypro/internal/csrf"
)

// captureToken records the token the wrapped handler sees in its context.
func captureToken(seen *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = csrf.Token(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func postForm(path string, values url.Values, cookie string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: cookie})
	}
	return req
}

func TestCSRF_GetIssuesToken(t *testing.T) {
	mw := NewCSRFMiddleware(discardLogger(), false)
	var seen string

	rec := httptest.NewRecorder()
	mw.Protect(captureToken(&seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/surveys", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, seen, cookies[0].Value)
}

func TestCSRF_Post(t *testing.T) {
	mw := NewCSRFMiddleware(discardLogger(), false)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name:   "matching token passes",
			req:    func() *http.Request { return postForm("/surveys/a/start", url.Values{csrf.FormFieldName: {"tok"}}, "tok") },
			status: http.StatusOK,
		},
		{
			name:   "missing field is refused",
			req:    func() *http.Request { return postForm("/surveys/a/start", url.Values{}, "tok") },
			status: http.StatusForbidden,
		},
		{
			name:   "missing cookie is refused",
			req:    func() *http.Request { return postForm("/packages/gold", url.Values{csrf.FormFieldName: {"tok"}}, "") },
			status: http.StatusForbidden,
		},
		{
			name: "header token passes",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/surveys/reset", nil)
				req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: "tok"})
				req.Header.Set(csrf.HeaderName, "tok")
				return req
			},
			status: http.StatusOK,
		},
		{
			name: "json body skips the check",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPatch, "/api/me", strings.NewReader(`{"tier":"gold"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			rec := httptest.NewRecorder()
			mw.Protect(captureToken(&seen)).ServeHTTP(rec, tt.req())
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCSRF_FormValuesSurviveTheCheck(t *testing.T) {
	mw := NewCSRFMiddleware(discardLogger(), false)
	var answer string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		answer = r.FormValue("q1")
	})

	rec := httptest.NewRecorder()
	req := postForm("/surveys/a/complete", url.Values{csrf.FormFieldName: {"tok"}, "q1": {"often"}}, "tok")
	mw.Protect(next).ServeHTTP(rec, req)

	assert.Equal(t, "often", answer)
}
