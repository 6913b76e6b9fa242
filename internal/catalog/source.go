package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/surveypro/internal/storage"
)

// Source produces the raw catalog document.
type Source interface {
	Fetch(ctx context.Context, p FetchPolicy) (io.ReadCloser, error)
}

// =============================================================================
// HTTP source
// =============================================================================

// HTTPSource fetches db.json from a static file server.
type HTTPSource struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewHTTPSource builds the document URL from baseURL and basePath.
// basePath is normalized to start with "/" and lose trailing slashes, so
// "", "/" and "app/" give "/db.json" and "/app/db.json".
func NewHTTPSource(baseURL, basePath string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		url:    strings.TrimSuffix(baseURL, "/") + DocumentPath(basePath),
		client: client,
		now:    time.Now,
	}
}

// DocumentPath returns the path of db.json under basePath.
func DocumentPath(basePath string) string {
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/") + "/db.json"
}

// URL returns the document URL without cache busting.
func (s *HTTPSource) URL() string {
	return s.url
}

func (s *HTTPSource) Fetch(ctx context.Context, p FetchPolicy) (io.ReadCloser, error) {
	target := s.url
	if p.CacheBust {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "_=" + strconv.FormatInt(s.now().UnixMilli(), 10)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.CacheMode == CacheNoStore {
		req.Header.Set("Cache-Control", "no-store")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// StatusError is returned for non-2xx catalog responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog request returned status %d", e.StatusCode)
}

// =============================================================================
// Object storage source
// =============================================================================

// StorageSource reads the catalog from object storage (local disk or R2).
// Cache settings do not apply.
type StorageSource struct {
	store storage.Storage
	key   string
}

// NewStorageSource reads key from store, defaulting to storage.DefaultCatalogKey.
func NewStorageSource(store storage.Storage, key string) *StorageSource {
	if key == "" {
		key = storage.DefaultCatalogKey
	}
	return &StorageSource{store: store, key: key}
}

func (s *StorageSource) Fetch(ctx context.Context, _ FetchPolicy) (io.ReadCloser, error) {
	rc, _, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	return rc, nil
}
