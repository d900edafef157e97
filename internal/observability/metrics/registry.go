// Package metrics provides centralized Prometheus metrics for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Discovery metrics track FreshLinkCollector/HistoricalLinkCollector runs.
var (
	// LinksDiscoveredTotal counts LinkRecords discovered per source.
	LinksDiscoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "links_discovered_total",
			Help: "Total number of links discovered from a source",
		},
		[]string{"source"},
	)

	// DiscoveryDuration measures time spent in one discover_recent call.
	DiscoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_duration_seconds",
			Help:    "Time taken to discover links from a source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)

	// DiscoveryErrors counts discover_recent failures by source.
	DiscoveryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_errors_total",
			Help: "Total number of link discovery errors",
		},
		[]string{"source"},
	)
)

// Page-fetch metrics track PageFetcherDispatcher.fetchOne outcomes.
var (
	// PageFetchAttemptsTotal counts fetches by outcome kind (success,
	// recoverable, terminal).
	PageFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_fetch_attempts_total",
			Help: "Total number of page fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	// PageFetchDuration measures time to fetch and extract one page.
	PageFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "page_fetch_duration_seconds",
			Help:    "Time taken to fetch a single page",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// PageFetchContentSize measures extracted article content size.
	PageFetchContentSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "page_fetch_content_size_bytes",
			Help: "Extracted article content size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600,
			},
		},
	)
)

// Embedding batches are instrumented directly in
// internal/usecase/scheduler/embedding.go (embeddingBatchesTotal,
// embeddingArticlesTotal, embeddingPendingGauge) rather than here, since
// that package already owns its own promauto vars scoped to the
// scheduler; duplicating them in this package would double-count the
// same signal under a different name.
