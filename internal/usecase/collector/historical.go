package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"newsfeed-pipeline/internal/domain/adapter"
	"newsfeed-pipeline/internal/repository"
)

// DefaultBatchDays is B in spec.md §4.3: the batch granularity in days.
const DefaultBatchDays = 10

// DefaultDayWorkers is W in spec.md §4.3: concurrent discover_for_day
// calls per batch.
const DefaultDayWorkers = 4

// HistoricalLinkCollector implements spec.md §4.3's backfill algorithm:
// batches of B days processed sequentially, each batch fanned out across
// up to W concurrent day-workers, persisting each day's results
// immediately as that day completes. It never fetches article content —
// only LinkRecords.
type HistoricalLinkCollector struct {
	links      repository.LinkRepository
	batchDays  int
	dayWorkers int
}

// NewHistoricalLinkCollector constructs a HistoricalLinkCollector with
// spec.md's defaults (B=10, W=4).
func NewHistoricalLinkCollector(links repository.LinkRepository) *HistoricalLinkCollector {
	return &HistoricalLinkCollector{
		links:      links,
		batchDays:  DefaultBatchDays,
		dayWorkers: DefaultDayWorkers,
	}
}

// WithBatchConfig overrides B/W for callers that need non-default
// batching (e.g. smaller test fixtures).
func (c *HistoricalLinkCollector) WithBatchConfig(batchDays, dayWorkers int) *HistoricalLinkCollector {
	c.batchDays = batchDays
	c.dayWorkers = dayWorkers
	return c
}

// Run walks [start, end] inclusive (Gregorian calendar days, UTC) in
// batches of c.batchDays, each batch fanned out across c.dayWorkers
// concurrent discover_for_day calls, persisting per day as it completes.
// Insertion order across days within a batch is not chronological by
// design (spec.md §4.3's ordering note) since queries are by published_at
// or status, never insertion order.
func (c *HistoricalLinkCollector) Run(ctx context.Context, pub adapter.PublisherAdapter, start, end time.Time) error {
	source := pub.SourceTag()
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return fmt.Errorf("historical link collector %s: end %v before start %v", source, end, start)
	}

	days := daysInRange(start, end)
	for batchStart := 0; batchStart < len(days); batchStart += c.batchDays {
		batchEnd := batchStart + c.batchDays
		if batchEnd > len(days) {
			batchEnd = len(days)
		}
		batch := days[batchStart:batchEnd]

		if err := c.runBatch(ctx, pub, batch); err != nil {
			return fmt.Errorf("historical link collector %s: batch starting %v: %w", source, batch[0], err)
		}
	}

	return nil
}

func (c *HistoricalLinkCollector) runBatch(ctx context.Context, pub adapter.PublisherAdapter, days []time.Time) error {
	sem := make(chan struct{}, c.dayWorkers)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, d := range days {
		day := d
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			links, err := pub.DiscoverForDay(egCtx, day)
			if err != nil {
				return fmt.Errorf("discover_for_day %v: %w", day, err)
			}
			if len(links) == 0 {
				return nil
			}

			if err := c.links.UpsertLinkRecords(egCtx, links); err != nil {
				return fmt.Errorf("upsert links for %v: %w", day, err)
			}

			slog.InfoContext(egCtx, "historical link collector day complete",
				slog.String("source", pub.SourceTag()), slog.Time("day", day), slog.Int("links", len(links)))
			return nil
		})
	}

	return eg.Wait()
}

func daysInRange(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
