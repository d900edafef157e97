// Package worker wires the pipeline's three run loops (fresh-link
// collection, page-fetch dispatch, embedding scheduling) into one
// process, generalizing the teacher's cmd/worker/main.go
// startCronWorker/runCrawlJob split into a reusable Runner the cmd
// entrypoint only has to construct and run.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	pipelinecfg "newsfeed-pipeline/internal/config"
	"newsfeed-pipeline/internal/domain/adapter"
	"newsfeed-pipeline/internal/infra/broker"
	infraworker "newsfeed-pipeline/internal/infra/worker"
	"newsfeed-pipeline/internal/observability/logging"
	"newsfeed-pipeline/internal/observability/tracing"
	"newsfeed-pipeline/internal/usecase/collector"
	"newsfeed-pipeline/internal/usecase/dispatcher"
	"newsfeed-pipeline/internal/usecase/scheduler"
)

// DefaultMaxPollInterval caps the idle-cycle poll-interval doubling
// spec.md §5 describes for the dispatcher and scheduler loops.
const DefaultMaxPollInterval = 5 * time.Minute

// sourceRegistry is the minimal lookup Runner needs from
// publisher.Registry to drive per-source fresh-discovery cron jobs.
type sourceRegistry interface {
	Tags() []string
	Get(tag string) (adapter.PublisherAdapter, bool)
}

// Runner owns the worker process's run loops plus the health/readiness
// server. Construction (repositories, adapters, embedder, broker) is the
// cmd entrypoint's job; Runner only schedules and supervises.
type Runner struct {
	logger     *slog.Logger
	metrics    *infraworker.CycleMetrics
	health     *infraworker.HealthServer
	durations  pipelinecfg.Durations
	registry   sourceRegistry
	fresh      *collector.FreshLinkCollector
	dispatcher *dispatcher.Dispatcher
	scheduler  *scheduler.Scheduler

	// queue is the optional inter-stage Broker (spec.md §3 item 5). When
	// set, a dispatcher cycle that claims work publishes a hint to
	// ContentQueue and the scheduler loop drains/acks any pending hint
	// before polling the RelationalStore itself. nil disables both: the
	// RelationalStore's claim-queue pattern alone is sufficient for
	// correctness, per spec.md's own framing of Broker as optional.
	queue broker.Broker
}

// New constructs a Runner. queue may be nil.
func New(
	logger *slog.Logger,
	metrics *infraworker.CycleMetrics,
	health *infraworker.HealthServer,
	durations pipelinecfg.Durations,
	registry sourceRegistry,
	fresh *collector.FreshLinkCollector,
	disp *dispatcher.Dispatcher,
	sched *scheduler.Scheduler,
	queue broker.Broker,
) *Runner {
	return &Runner{
		logger:     logger,
		metrics:    metrics,
		health:     health,
		durations:  durations,
		registry:   registry,
		fresh:      fresh,
		dispatcher: disp,
		scheduler:  sched,
		queue:      queue,
	}
}

// Run starts every loop and blocks until ctx is cancelled, then waits up
// to durations.ShutdownGrace for in-flight cycles to finish (spec.md §5's
// 10s default shutdown grace window) before returning.
func (r *Runner) Run(ctx context.Context) error {
	healthDone := make(chan error, 1)
	go func() { healthDone <- r.health.Start(ctx) }()

	c := cron.New()
	tags := r.registry.Tags()
	for _, tag := range tags {
		tag := tag
		schedule := pipelinecfg.SourceCadence(r.logger, tag)
		if _, err := c.AddFunc(schedule, func() { r.runCollectorCycle(ctx, tag) }); err != nil {
			r.logger.Error("worker: failed to schedule source cadence",
				slog.String("source", tag), slog.String("schedule", schedule), slog.String("error", err.Error()))
		}
	}
	c.Start()
	defer c.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); r.runDispatcherLoop(ctx) }()
	go func() { defer wg.Done(); r.runSchedulerLoop(ctx) }()

	r.health.SetReady(true)
	r.logger.Info("worker started", slog.Int("sources", len(tags)))

	<-ctx.Done()
	r.logger.Info("worker shutting down", slog.Duration("grace", r.durations.ShutdownGrace))
	r.health.SetReady(false)

	loopsDone := make(chan struct{})
	go func() { wg.Wait(); close(loopsDone) }()

	select {
	case <-loopsDone:
	case <-time.After(r.durations.ShutdownGrace):
		r.logger.Warn("worker: shutdown grace period elapsed before loops finished")
	}

	if err := <-healthDone; err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("worker: health server: %w", err)
	}
	return nil
}

// runCollectorCycle runs one FreshLinkCollector pass for tag, invoked by
// cron on that source's configured cadence.
func (r *Runner) runCollectorCycle(ctx context.Context, tag string) {
	ctx, span := tracing.GetTracer().Start(ctx, "collector.cycle")
	defer span.End()

	logger := logging.WithSource(r.logger, tag)

	pub, ok := r.registry.Get(tag)
	if !ok {
		logger.Error("worker: source no longer registered")
		return
	}

	start := time.Now()
	err := r.fresh.Run(ctx, pub)
	r.metrics.RecordCycleDuration("collector", time.Since(start).Seconds())
	if err != nil {
		logger.Error("worker: collector cycle failed", slog.String("error", err.Error()))
		r.metrics.RecordCycleRun("collector", "failure")
		return
	}
	r.metrics.RecordCycleRun("collector", "success")
	r.metrics.RecordLastSuccess("collector")
}

// runDispatcherLoop drives PageFetcherDispatcher cycles on an interval
// that doubles (capped at DefaultMaxPollInterval) whenever a cycle claims
// nothing, and resets to the base interval the moment work reappears.
func (r *Runner) runDispatcherLoop(ctx context.Context) {
	interval := r.durations.PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed := r.runDispatcherCycle(ctx)
			interval = nextPollInterval(interval, r.durations.PollInterval, claimed)
			ticker.Reset(interval)
		}
	}
}

func (r *Runner) runDispatcherCycle(ctx context.Context) int {
	ctx, span := tracing.GetTracer().Start(ctx, "dispatcher.cycle")
	defer span.End()

	start := time.Now()
	n, err := r.dispatcher.RunCycle(ctx)
	r.metrics.RecordCycleDuration("dispatcher", time.Since(start).Seconds())
	r.metrics.RecordItemsProcessed("dispatcher", n)
	if err != nil {
		r.logger.Error("worker: dispatcher cycle failed", slog.String("error", err.Error()))
		r.metrics.RecordCycleRun("dispatcher", "failure")
		return n
	}
	r.metrics.RecordCycleRun("dispatcher", "success")
	r.metrics.RecordLastSuccess("dispatcher")
	r.publishHint(ctx, broker.ContentQueue, n)
	return n
}

// runSchedulerLoop drives EmbeddingScheduler cycles the same way
// runDispatcherLoop drives the dispatcher, additionally draining any
// ContentQueue hint the dispatcher published before each poll.
func (r *Runner) runSchedulerLoop(ctx context.Context) {
	interval := r.durations.PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drainHint(ctx, broker.ContentQueue)
			claimed := r.runSchedulerCycle(ctx)
			interval = nextPollInterval(interval, r.durations.PollInterval, claimed)
			if backoff := r.scheduler.CadenceBackoff(); backoff > interval {
				interval = backoff
			}
			ticker.Reset(interval)
		}
	}
}

func (r *Runner) runSchedulerCycle(ctx context.Context) int {
	ctx, span := tracing.GetTracer().Start(ctx, "scheduler.cycle")
	defer span.End()

	start := time.Now()
	n, err := r.scheduler.RunCycle(ctx)
	r.metrics.RecordCycleDuration("scheduler", time.Since(start).Seconds())
	r.metrics.RecordItemsProcessed("scheduler", n)
	if err != nil {
		r.logger.Error("worker: scheduler cycle failed", slog.String("error", err.Error()))
		r.metrics.RecordCycleRun("scheduler", "failure")
		return n
	}
	r.metrics.RecordCycleRun("scheduler", "success")
	r.metrics.RecordLastSuccess("scheduler")
	return n
}

// publishHint publishes a best-effort signal to queue when n items were
// claimed this cycle. Failures are logged, never propagated: the
// RelationalStore poll that follows is always correct on its own.
func (r *Runner) publishHint(ctx context.Context, queue broker.QueueName, n int) {
	if r.queue == nil || n == 0 {
		return
	}
	if err := r.queue.Publish(ctx, queue, []string{strconv.Itoa(n)}); err != nil {
		r.logger.Warn("worker: queue publish failed",
			slog.String("queue", string(queue)), slog.String("error", err.Error()))
	}
}

// drainHint receives and immediately acks any pending hint on queue. The
// hint carries no authoritative data; draining it only prevents it from
// accumulating in a broker that retains unacked entries.
func (r *Runner) drainHint(ctx context.Context, queue broker.QueueName) {
	if r.queue == nil {
		return
	}
	msgs, err := r.queue.Receive(ctx, queue, 10)
	if err != nil {
		r.logger.Warn("worker: queue receive failed",
			slog.String("queue", string(queue)), slog.String("error", err.Error()))
		return
	}
	if len(msgs) == 0 {
		return
	}
	if err := r.queue.Ack(ctx, queue, msgs); err != nil {
		r.logger.Warn("worker: queue ack failed",
			slog.String("queue", string(queue)), slog.String("error", err.Error()))
	}
}

// nextPollInterval implements spec.md §5's idle-cycle backpressure: double
// the interval (capped) when a cycle claimed nothing, reset to base the
// moment work reappears. This is distinct from the scheduler's own
// rate-limit cadence backoff (Scheduler.CadenceBackoff), which the
// scheduler loop additionally floors its interval against.
func nextPollInterval(current, base time.Duration, claimed int) time.Duration {
	if claimed > 0 {
		return base
	}
	next := current * 2
	if next > DefaultMaxPollInterval {
		return DefaultMaxPollInterval
	}
	return next
}
