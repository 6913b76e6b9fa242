package metrics

import "time"

// CatalogLoaded records a successful catalog load.
func CatalogLoaded(duration time.Duration) {
	CatalogLoadsTotal.WithLabelValues("success").Inc()
	CatalogLoadDuration.Observe(duration.Seconds())
}

// CatalogLoadFailed records a catalog load that exhausted its retries.
func CatalogLoadFailed(duration time.Duration) {
	CatalogLoadsTotal.WithLabelValues("failure").Inc()
	CatalogLoadDuration.Observe(duration.Seconds())
}

// CatalogFetchRetried records one retry of a catalog fetch.
func CatalogFetchRetried() {
	CatalogFetchRetriesTotal.Inc()
}
