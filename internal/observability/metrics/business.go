package metrics

import "time"

// RecordLinksDiscovered records the number of links discovered from one
// source during a FreshLinkCollector or HistoricalLinkCollector pass.
func RecordLinksDiscovered(source string, count int) {
	if count <= 0 {
		return
	}
	LinksDiscoveredTotal.WithLabelValues(source).Add(float64(count))
}

// RecordDiscoveryDuration records the time taken to discover links from
// one source.
func RecordDiscoveryDuration(source string, duration time.Duration) {
	DiscoveryDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordDiscoveryError records a link discovery failure for one source.
func RecordDiscoveryError(source string) {
	DiscoveryErrors.WithLabelValues(source).Inc()
}

// RecordPageFetchSuccess records a successful page-fetch-and-extract
// operation, tracking duration and the resulting content size.
func RecordPageFetchSuccess(duration time.Duration, contentSize int) {
	PageFetchAttemptsTotal.WithLabelValues("success").Inc()
	PageFetchDuration.Observe(duration.Seconds())
	PageFetchContentSize.Observe(float64(contentSize))
}

// RecordPageFetchRecoverable records a page fetch that failed in a way
// the dispatcher will retry (spec.md §4.4's recoverable outcome).
func RecordPageFetchRecoverable(duration time.Duration) {
	PageFetchAttemptsTotal.WithLabelValues("recoverable").Inc()
	PageFetchDuration.Observe(duration.Seconds())
}

// RecordPageFetchTerminal records a page fetch that failed permanently
// (spec.md §4.4's terminal outcome, e.g. entity.ErrURLNotOwned).
func RecordPageFetchTerminal(duration time.Duration) {
	PageFetchAttemptsTotal.WithLabelValues("terminal").Inc()
	PageFetchDuration.Observe(duration.Seconds())
}
