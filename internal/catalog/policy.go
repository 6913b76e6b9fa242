package catalog

import (
	"fmt"
	"time"
)

// CacheMode controls what the catalog request asks of HTTP caches.
type CacheMode string

const (
	// CacheNoStore sends Cache-Control: no-store.
	CacheNoStore CacheMode = "no-store"
	// CacheDefault leaves caching to the transport.
	CacheDefault CacheMode = "default"
)

// FetchPolicy configures how the catalog document is fetched.
type FetchPolicy struct {
	// CacheMode is sent to HTTP sources as a Cache-Control header.
	CacheMode CacheMode

	// CacheBust appends "_=<unix millis>" to the request URL.
	CacheBust bool

	// Retries is the number of extra attempts after a failed fetch.
	Retries int

	// BaseDelay is the first backoff delay; it doubles per retry.
	BaseDelay time.Duration

	// Timeout bounds a whole load, retries included. Zero means no limit.
	Timeout time.Duration
}

// DefaultPolicy fetches once, bypassing caches.
func DefaultPolicy() FetchPolicy {
	return FetchPolicy{
		CacheMode: CacheNoStore,
		CacheBust: true,
		Retries:   0,
		BaseDelay: 200 * time.Millisecond,
	}
}

// Validate checks the policy for invalid values.
func (p FetchPolicy) Validate() error {
	switch p.CacheMode {
	case CacheNoStore, CacheDefault:
	default:
		return fmt.Errorf("cache mode must be %q or %q, got %q", CacheNoStore, CacheDefault, p.CacheMode)
	}
	if p.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}
	if p.Retries > 0 && p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive when retries are enabled")
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}
