package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentPath(t *testing.T) {
	assert.Equal(t, "/db.json", DocumentPath(""))
	assert.Equal(t, "/db.json", DocumentPath("/"))
	assert.Equal(t, "/app/db.json", DocumentPath("app"))
	assert.Equal(t, "/app/db.json", DocumentPath("/app///"))
}

func TestHTTPSource_FetchSendsCachePolicy(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = io.WriteString(w, `{"surveys":[]}`)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "/app/", srv.Client())
	src.now = func() time.Time { return time.UnixMilli(1700000000123) }

	rc, err := src.Fetch(context.Background(), DefaultPolicy())
	require.NoError(t, err)
	rc.Close()

	require.NotNil(t, got)
	assert.Equal(t, "/app/db.json", got.URL.Path)
	assert.Equal(t, "1700000000123", got.URL.Query().Get("_"))
	assert.Equal(t, "no-store", got.Header.Get("Cache-Control"))
}

func TestHTTPSource_FetchAppendsToExistingQuery(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	src := &HTTPSource{url: srv.URL + "/db.json?v=2", client: srv.Client(), now: func() time.Time { return time.UnixMilli(5) }}

	rc, err := src.Fetch(context.Background(), DefaultPolicy())
	require.NoError(t, err)
	rc.Close()

	assert.Equal(t, "v=2&_=5", rawQuery)
}

func TestHTTPSource_FetchWithoutBusting(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", srv.Client())
	rc, err := src.Fetch(context.Background(), FetchPolicy{CacheMode: CacheDefault})
	require.NoError(t, err)
	rc.Close()

	assert.Empty(t, got.URL.RawQuery)
	assert.Empty(t, got.Header.Get("Cache-Control"))
}

func TestHTTPSource_FetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, "", srv.Client()).Fetch(context.Background(), DefaultPolicy())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestFetchPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.CacheMode = "reload"
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.Retries = -1
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.Retries = 2
	p.BaseDelay = 0
	assert.Error(t, p.Validate())
}
