// Package dispatcher implements PageFetcherDispatcher (spec.md §4.4),
// the central hard part of the pipeline: claim PENDING LinkRecords,
// group by source, fetch under per-source bounded concurrency, and
// persist each link's outcome with retry accounting.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"newsfeed-pipeline/internal/domain/adapter"
	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/observability/metrics"
	"newsfeed-pipeline/internal/repository"
)

// DefaultClaimLimit is N in spec.md §4.4: link ids claimed per cycle.
const DefaultClaimLimit = 30

// DefaultPerSourceConcurrency is the default parallelism within one
// source's sub-batch (spec.md §5).
const DefaultPerSourceConcurrency = 5

// DefaultMaxRetries bounds tried_count before a link is marked FAILED.
const DefaultMaxRetries = 3

// DefaultMinContentChars is the minimum extracted content length a
// fetched article must meet; shorter content is treated as a
// recoverable failure (spec.md §4.1/§4.4, §6).
const DefaultMinContentChars = 50

// Config tunes one Dispatcher instance.
type Config struct {
	ClaimLimit           int
	PerSourceConcurrency int
	MaxRetries           int
	MinContentChars      int
}

// DefaultConfig returns spec.md §4.4/§5's stated defaults.
func DefaultConfig() Config {
	return Config{
		ClaimLimit:           DefaultClaimLimit,
		PerSourceConcurrency: DefaultPerSourceConcurrency,
		MaxRetries:           DefaultMaxRetries,
		MinContentChars:      DefaultMinContentChars,
	}
}

// Dispatcher implements spec.md §4.4's five-step cycle.
type Dispatcher struct {
	links     repository.LinkRepository
	publisher publisherRegistry
	cfg       Config
	inFlight  *inFlightSet
}

// publisherRegistry is the minimal lookup Dispatcher needs from
// publisher.Registry, expressed as an interface so this package does not
// import internal/infra/publisher directly.
type publisherRegistry interface {
	Get(tag string) (adapter.PublisherAdapter, bool)
}

// New constructs a Dispatcher.
func New(links repository.LinkRepository, registry publisherRegistry, cfg Config) *Dispatcher {
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = DefaultClaimLimit
	}
	if cfg.PerSourceConcurrency <= 0 {
		cfg.PerSourceConcurrency = DefaultPerSourceConcurrency
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = DefaultMinContentChars
	}

	return &Dispatcher{
		links:     links,
		publisher: registry,
		cfg:       cfg,
		inFlight:  newInFlightSet(),
	}
}

// RunCycle executes one pass of spec.md §4.4's algorithm: claim, group by
// source, dispatch, per-link outcome, commit. Returns the number of links
// claimed this cycle (0 means the caller's backpressure poll-interval
// doubling should kick in, per spec.md §5).
func (d *Dispatcher) RunCycle(ctx context.Context) (int, error) {
	claimed, err := d.links.ClaimPendingLinks(ctx, "", d.cfg.ClaimLimit, d.cfg.MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("dispatcher: claim: %w", err)
	}
	// Skip links this process already has in flight.
	notInFlight := claimed[:0]
	for _, l := range claimed {
		if !d.inFlight.has(l.ID) {
			notInFlight = append(notInFlight, l)
		}
	}
	claimed = notInFlight
	if len(claimed) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(claimed))
	for i, l := range claimed {
		ids[i] = l.ID
	}
	d.inFlight.add(ids)
	defer d.inFlight.remove(ids)

	bySource := groupBySource(claimed)

	eg, egCtx := errgroup.WithContext(ctx)
	for source, links := range bySource {
		source, links := source, links
		eg.Go(func() error {
			return d.dispatchSource(egCtx, source, links)
		})
	}

	if err := eg.Wait(); err != nil {
		return len(claimed), err
	}

	slog.InfoContext(ctx, "dispatcher cycle complete", slog.Int("claimed", len(claimed)), slog.Int("sources", len(bySource)))
	return len(claimed), nil
}

func groupBySource(links []entity.LinkRecord) map[string][]entity.LinkRecord {
	bySource := make(map[string][]entity.LinkRecord)
	for _, l := range links {
		bySource[l.Source] = append(bySource[l.Source], l)
	}
	return bySource
}

// dispatchSource fetches every link in links through pub under a
// per-source concurrency limit, persisting each outcome as it completes.
// A missing registry entry for source is logged and every link in the
// sub-batch is treated as a terminal failure (the adapter that would own
// these URLs was never wired up — retrying will never succeed).
func (d *Dispatcher) dispatchSource(ctx context.Context, source string, links []entity.LinkRecord) error {
	pub, ok := d.publisher.Get(source)
	if !ok {
		slog.ErrorContext(ctx, "dispatcher: no publisher adapter registered for source", slog.String("source", source))
		for _, l := range links {
			if err := d.links.RecordFetchOutcome(ctx, l.ID, repository.OutcomeTerminal, d.cfg.MaxRetries, nil); err != nil {
				slog.ErrorContext(ctx, "dispatcher: failed to record terminal outcome", slog.Int64("link_id", l.ID), slog.String("error", err.Error()))
			}
		}
		return nil
	}

	sem := make(chan struct{}, d.cfg.PerSourceConcurrency)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, link := range links {
		link := link
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			return d.fetchOne(egCtx, pub, link)
		})
	}

	return eg.Wait()
}

// fetchOne implements spec.md §4.4 step 4 for a single link: classify
// the fetch result into one of three outcomes and persist it. Errors
// from RecordFetchOutcome are logged and swallowed rather than failing
// the whole source's errgroup — one DB write failure for one link must
// not abort every other in-flight fetch in the same sub-batch.
func (d *Dispatcher) fetchOne(ctx context.Context, pub adapter.PublisherAdapter, link entity.LinkRecord) error {
	start := time.Now()
	article, err := pub.Fetch(ctx, link, d.cfg.MinContentChars)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordPageFetchSuccess(elapsed, len(article.Content))
		if recErr := d.links.RecordFetchOutcome(ctx, link.ID, repository.OutcomeSuccess, d.cfg.MaxRetries, article); recErr != nil {
			slog.ErrorContext(ctx, "dispatcher: failed to record success outcome",
				slog.Int64("link_id", link.ID), slog.String("url", link.URL), slog.String("error", recErr.Error()))
		}
	case errors.Is(err, entity.ErrURLNotOwned):
		metrics.RecordPageFetchTerminal(elapsed)
		if recErr := d.links.RecordFetchOutcome(ctx, link.ID, repository.OutcomeTerminal, d.cfg.MaxRetries, nil); recErr != nil {
			slog.ErrorContext(ctx, "dispatcher: failed to record terminal outcome",
				slog.Int64("link_id", link.ID), slog.String("url", link.URL), slog.String("error", recErr.Error()))
		}
	default:
		metrics.RecordPageFetchRecoverable(elapsed)
		slog.WarnContext(ctx, "dispatcher: recoverable fetch failure",
			slog.Int64("link_id", link.ID), slog.String("url", link.URL), slog.String("error", err.Error()))
		if recErr := d.links.RecordFetchOutcome(ctx, link.ID, repository.OutcomeRecoverable, d.cfg.MaxRetries, nil); recErr != nil {
			slog.ErrorContext(ctx, "dispatcher: failed to record recoverable outcome",
				slog.Int64("link_id", link.ID), slog.String("url", link.URL), slog.String("error", recErr.Error()))
		}
	}

	return nil
}

// InFlightCount reports the number of link ids currently claimed by this
// process but not yet committed, for observability.
func (d *Dispatcher) InFlightCount() int {
	return d.inFlight.size()
}
