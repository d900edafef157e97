package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"newsfeed-pipeline/internal/config"
	"newsfeed-pipeline/internal/infra/broker"
	"newsfeed-pipeline/internal/infra/cache"
	"newsfeed-pipeline/internal/infra/embedder"
	"newsfeed-pipeline/internal/infra/persistence/postgres"
	"newsfeed-pipeline/internal/infra/publisher"
	infraworker "newsfeed-pipeline/internal/infra/worker"
	"newsfeed-pipeline/internal/observability/logging"
	pkgconfig "newsfeed-pipeline/internal/pkg/config"
	"newsfeed-pipeline/internal/repository"
	"newsfeed-pipeline/internal/usecase/collector"
	"newsfeed-pipeline/internal/usecase/dispatcher"
	"newsfeed-pipeline/internal/usecase/scheduler"
	"newsfeed-pipeline/internal/worker"
)

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configMetrics := pkgconfig.NewConfigMetrics("pipeline")
	cfg := config.LoadPipelineConfigFromEnv(logger, configMetrics)

	db := initDatabase(ctx, logger, cfg.DatabaseURL)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	linkRepo := postgres.NewLinkRepo(db)
	articleRepo := postgres.NewArticleRepo(db)
	vectorRepo := postgres.NewVectorRepo(db)

	registry := initPublisherRegistry(logger, cfg)

	embed, err := initEmbedder(ctx, cfg)
	if err != nil {
		logger.Error("failed to construct embedder", slog.Any("error", err))
		os.Exit(1)
	}

	markerCache, err := cache.NewShortTermCache(fmt.Sprintf("%s:%d", cfg.CacheHost, cfg.CachePort))
	if err != nil {
		logger.Error("failed to connect to marker cache", slog.Any("error", err))
		os.Exit(1)
	}

	q := initBroker(logger, cfg, linkRepo, articleRepo)
	if q != nil {
		defer func() {
			if err := q.Close(); err != nil {
				logger.Error("failed to close broker", slog.Any("error", err))
			}
		}()
	}

	fresh := collector.NewFreshLinkCollector(linkRepo, markerCache)

	dispatcherCfg := dispatcher.DefaultConfig()
	dispatcherCfg.MaxRetries = cfg.MaxRetries
	dispatcherCfg.MinContentChars = cfg.MinContentChars
	disp := dispatcher.New(linkRepo, registry, dispatcherCfg)

	sched := scheduler.New(articleRepo, vectorRepo, embed, scheduler.DefaultConfig())

	metrics := infraworker.NewCycleMetrics()
	health := infraworker.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger)

	runner := worker.New(logger, metrics, health, config.DefaultDurations(), registry, fresh, disp, sched, q)

	logger.Info("worker starting", slog.Int("sources", len(registry.Tags())))
	if err := runner.Run(ctx); err != nil {
		logger.Error("worker exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// initLogger builds the process-wide structured logger, honoring LOG_LEVEL
// the same way the rest of this codebase's commands do.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the RelationalStore connection pool and brings the
// schema up to date. Migrations run inline at startup rather than via a
// separate step, since this pipeline has no other process that would race
// it to apply them.
func initDatabase(ctx context.Context, logger *slog.Logger, dsn string) *sql.DB {
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := postgres.MigrateUp(db); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	if err := postgres.EnsureVectorIndex(db); err != nil {
		logger.Warn("failed to ensure vector index, continuing without it", slog.Any("error", err))
	}
	return db
}

// initPublisherRegistry builds the set of rss-kind sources from
// SOURCES/SOURCE_<TAG>_* environment variables. Archive-kind sources have
// no environment representation (internal/config.LoadSourceConfigsFromEnv's
// doc comment); none are registered here since this deployment is
// RSS-first, matching the source list exercised in tests.
func initPublisherRegistry(logger *slog.Logger, cfg *config.PipelineConfig) *publisher.Registry {
	sourceConfigs := config.LoadSourceConfigsFromEnv(logger)
	reg, err := publisher.NewRegistry(sourceConfigs, publisher.ClientConfigFromEnv())
	if err != nil {
		logger.Error("failed to build publisher registry", slog.Any("error", err))
		os.Exit(1)
	}
	return reg
}

// initEmbedder constructs the configured Embedder implementation.
func initEmbedder(ctx context.Context, cfg *config.PipelineConfig) (embedder.Embedder, error) {
	switch cfg.EmbedderProvider {
	case config.EmbedderProviderLocal:
		localCfg := embedder.DefaultLocalHTTPConfig(cfg.LocalEmbedderURL, cfg.LocalEmbedderModel)
		return embedder.NewLocalHTTP(ctx, localCfg)
	default:
		return embedder.NewRemoteOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIEmbeddingModel, "")
	}
}

// initBroker builds the optional inter-stage Broker. BROKER_ADDR set means
// Redis Streams; unset falls back to a DB-polling broker wired directly to
// the RelationalStore's own claim queries, so the hint path always has a
// usable backend even with no Redis deployed (spec.md §3 item 5).
func initBroker(logger *slog.Logger, cfg *config.PipelineConfig, links repository.LinkRepository, articles repository.ArticleRepository) broker.Broker {
	if cfg.BrokerAddr != "" {
		b, err := broker.NewRedisStreamBroker(cfg.BrokerAddr)
		if err != nil {
			logger.Warn("failed to connect to redis stream broker, falling back to db-poll broker", slog.Any("error", err))
		} else {
			return b
		}
	}

	return broker.NewDBPollBroker(map[broker.QueueName]broker.ClaimFunc{
		broker.ContentQueue: func(ctx context.Context, max int) ([]string, error) {
			claimed, err := articles.ClaimPendingArticles(ctx, max)
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(claimed))
			for i, a := range claimed {
				ids[i] = a.URL
			}
			return ids, nil
		},
	})
}
