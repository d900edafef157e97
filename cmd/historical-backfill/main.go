// Command historical-backfill runs HistoricalLinkCollector for one source
// over an explicit date range (spec.md §4.3), separate from the worker
// process since a backfill is an operator-triggered one-shot run rather
// than part of the steady-state pipeline.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"newsfeed-pipeline/internal/config"
	"newsfeed-pipeline/internal/infra/persistence/postgres"
	"newsfeed-pipeline/internal/infra/publisher"
	"newsfeed-pipeline/internal/observability/logging"
	pkgconfig "newsfeed-pipeline/internal/pkg/config"
	"newsfeed-pipeline/internal/usecase/collector"
)

const dateLayout = "2006-01-02"

func main() {
	logger := logging.NewLogger()

	sourceTag := flag.String("source", "", "source tag to backfill (must already be configured via SOURCES)")
	fromStr := flag.String("from", "", "start date, inclusive, YYYY-MM-DD")
	toStr := flag.String("to", "", "end date, inclusive, YYYY-MM-DD")
	batchDays := flag.Int("batch-days", collector.DefaultBatchDays, "days per batch (B in the backfill algorithm)")
	dayWorkers := flag.Int("day-workers", collector.DefaultDayWorkers, "concurrent discover_for_day calls per batch (W)")
	flag.Parse()

	if *sourceTag == "" || *fromStr == "" || *toStr == "" {
		logger.Error("missing required flags", slog.String("usage", "historical-backfill -source <tag> -from YYYY-MM-DD -to YYYY-MM-DD"))
		os.Exit(2)
	}

	from, err := time.Parse(dateLayout, *fromStr)
	if err != nil {
		logger.Error("invalid -from date", slog.Any("error", err))
		os.Exit(2)
	}
	to, err := time.Parse(dateLayout, *toStr)
	if err != nil {
		logger.Error("invalid -to date", slog.Any("error", err))
		os.Exit(2)
	}
	if to.Before(from) {
		logger.Error("-to must not be before -from", slog.Time("from", from), slog.Time("to", to))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configMetrics := pkgconfig.NewConfigMetrics("historical_backfill")
	cfg := config.LoadPipelineConfigFromEnv(logger, configMetrics)

	db := openDatabase(ctx, logger, cfg.DatabaseURL)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	linkRepo := postgres.NewLinkRepo(db)

	sourceConfigs := config.LoadSourceConfigsFromEnv(logger)
	registry, err := publisher.NewRegistry(sourceConfigs, publisher.ClientConfigFromEnv())
	if err != nil {
		logger.Error("failed to build publisher registry", slog.Any("error", err))
		os.Exit(1)
	}

	pub, ok := registry.Get(*sourceTag)
	if !ok {
		logger.Error("source not configured", slog.String("source", *sourceTag))
		os.Exit(1)
	}

	backfill := collector.NewHistoricalLinkCollector(linkRepo).WithBatchConfig(*batchDays, *dayWorkers)

	logger.Info("starting historical backfill",
		slog.String("source", *sourceTag),
		slog.Time("from", from), slog.Time("to", to),
		slog.Int("batch_days", *batchDays), slog.Int("day_workers", *dayWorkers))

	if err := backfill.Run(ctx, pub, from, to); err != nil {
		logger.Error("historical backfill failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("historical backfill complete")
}

func openDatabase(ctx context.Context, logger *slog.Logger, dsn string) *sql.DB {
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := postgres.MigrateUp(db); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	return db
}
