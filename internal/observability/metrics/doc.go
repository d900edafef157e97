// Package metrics provides the pipeline's stage-internal Prometheus
// metrics: link discovery (counts, duration, errors per source) and
// page-fetch outcomes (attempts by outcome, duration, content size).
// These sit below the per-cycle aggregates in internal/infra/worker's
// CycleMetrics, giving finer-than-cycle granularity where a single
// cycle processes many sources or many links.
//
// All metrics are automatically registered with the Prometheus default
// registry and exposed via the worker's health/metrics endpoint.
//
// Example usage:
//
//	start := time.Now()
//	newestURL, links, err := pub.DiscoverRecent(ctx, lastSeenURL)
//	metrics.RecordDiscoveryDuration(source, time.Since(start))
//	if err != nil {
//	    metrics.RecordDiscoveryError(source)
//	}
package metrics
