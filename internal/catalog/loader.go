// Package catalog loads the static survey catalog and maps its entries to
// the per-user survey view.
//
// The catalog is a JSON document ({"surveys": [...]}) published as db.json
// next to the site, or in object storage. A Loader fetches it once per
// lifetime and serves the cached copy afterwards.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/metrics"
	"github.com/DukeRupert/surveypro/internal/storage"
)

// LoadErrorMessage is the message shown when the catalog cannot be loaded.
const LoadErrorMessage = "Failed to load db.json"

// ErrLoad is wrapped by every error returned from Loader.Load.
var ErrLoad = errors.New("catalog: load failed")

// Loader fetches and caches the catalog document. It is safe for
// concurrent use; concurrent first loads share a single fetch.
type Loader struct {
	src    Source
	policy FetchPolicy
	logger *slog.Logger

	mu     sync.RWMutex
	cached *domain.Catalog
	group  singleflight.Group
}

// NewLoader creates a Loader reading from src under policy.
func NewLoader(src Source, policy FetchPolicy, logger *slog.Logger) *Loader {
	return &Loader{src: src, policy: policy, logger: logger}
}

// Load returns the catalog, fetching it on first use. Failures are not
// cached, so a later call tries again. The returned error is a
// *domain.Error with code EUNAVAILABLE and wraps ErrLoad.
func (l *Loader) Load(ctx context.Context) (*domain.Catalog, error) {
	const op = "catalog.load"

	if c := l.cachedCatalog(); c != nil {
		return c, nil
	}

	// The fetch outlives any single caller so that one cancelled request
	// does not fail the others waiting on it. FetchPolicy.Timeout bounds it.
	ch := l.group.DoChan("catalog", func() (any, error) {
		if c := l.cachedCatalog(); c != nil {
			return c, nil
		}
		return l.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, domain.Unavailable(fmt.Errorf("%w: %w", ErrLoad, ctx.Err()), op, LoadErrorMessage)
	case res := <-ch:
		if res.Err != nil {
			return nil, domain.Unavailable(fmt.Errorf("%w: %w", ErrLoad, res.Err), op, LoadErrorMessage)
		}
		return res.Val.(*domain.Catalog), nil
	}
}

// Invalidate drops the cached catalog; the next Load fetches again.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

// Cached reports whether a catalog is currently cached.
func (l *Loader) Cached() bool {
	return l.cachedCatalog() != nil
}

func (l *Loader) cachedCatalog() *domain.Catalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cached
}

func (l *Loader) fetch(ctx context.Context) (*domain.Catalog, error) {
	start := time.Now()

	if l.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.policy.Timeout)
		defer cancel()
	}

	base := l.policy.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(l.policy.Retries), retry.NewExponential(base))

	attempt := 0
	cat, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*domain.Catalog, error) {
		attempt++
		if attempt > 1 {
			metrics.CatalogFetchRetried()
			l.logger.Warn("retrying catalog fetch", "attempt", attempt)
		}

		rc, err := l.src.Fetch(ctx, l.policy)
		if err != nil {
			if permanent(err) {
				return nil, err
			}
			return nil, retry.RetryableError(err)
		}
		defer rc.Close()

		var doc domain.Catalog
		if err := json.NewDecoder(rc).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return &doc, nil
	})
	if err != nil {
		metrics.CatalogLoadFailed(time.Since(start))
		l.logger.Error("failed to load catalog", "error", err, "attempts", attempt)
		return nil, err
	}

	if cat.Surveys == nil {
		cat.Surveys = []domain.CatalogEntry{}
	}

	l.mu.Lock()
	l.cached = cat
	l.mu.Unlock()

	metrics.CatalogLoaded(time.Since(start))
	l.logger.Info("catalog loaded", "surveys", len(cat.Surveys), "attempts", attempt, "duration", time.Since(start))
	return cat, nil
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	if storage.IsPermanent(err) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return false
		}
		return se.StatusCode < 500
	}
	return false
}
