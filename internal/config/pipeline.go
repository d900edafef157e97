package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	pkgconfig "newsfeed-pipeline/internal/pkg/config"
	envconfig "newsfeed-pipeline/pkg/config"
)

// EmbedderProvider selects which Embedder implementation the worker wires
// up (spec.md §6 EMBEDDER_PROVIDER).
type EmbedderProvider string

const (
	EmbedderProviderOpenAI EmbedderProvider = "openai"
	EmbedderProviderLocal  EmbedderProvider = "local"
)

// PipelineConfig holds every environment-driven setting the worker process
// needs, per spec.md §6's enumerated environment inputs. All other
// configuration (pool sizes, timeouts, worker counts) keeps the defaults
// named in spec.md §4/§5 and is not meant to be environment-overridden,
// matching spec.md §6's "all other configuration is internal".
type PipelineConfig struct {
	// DatabaseURL is the RelationalStore DSN. Required; there is no
	// sensible default for a database connection string.
	DatabaseURL string

	// VectorStoreHost / VectorStorePort address the pgvector-backed
	// store. Defaults to the host portion of DatabaseURL and 5432.
	VectorStoreHost string
	VectorStorePort int

	// CacheHost / CachePort address the ShortTermCache (Redis).
	CacheHost string
	CachePort int

	// BrokerAddr addresses the Redis Streams broker. Empty means the
	// worker falls back to a DB-polling broker (spec.md §3 item 5).
	BrokerAddr string

	// EmbedderProvider selects RemoteOpenAI or LocalHTTP.
	EmbedderProvider EmbedderProvider

	// OpenAIAPIKey / OpenAIEmbeddingModel configure RemoteOpenAI.
	OpenAIAPIKey       string
	OpenAIEmbeddingModel string

	// LocalEmbedderURL / LocalEmbedderModel configure LocalHTTP.
	LocalEmbedderURL   string
	LocalEmbedderModel string

	// MaxRetries bounds tried_count before a LinkRecord is FAILED
	// (spec.md §3/§7).
	MaxRetries int

	// MinContentChars is the content-quality floor (spec.md §7).
	MinContentChars int

	// HealthPort serves the process health-check endpoint.
	HealthPort int
}

// DefaultSourceCadence is the per-source fresh-discovery cron expression
// used when SOURCE_<TAG>_CADENCE is unset (spec.md §5: "15s typical").
const DefaultSourceCadence = "@every 15s"

// DefaultPipelineConfig returns spec.md §6's stated defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		VectorStoreHost:      "localhost",
		VectorStorePort:      5432,
		CacheHost:            "localhost",
		CachePort:            6379,
		BrokerAddr:           "",
		EmbedderProvider:     EmbedderProviderOpenAI,
		OpenAIEmbeddingModel: "text-embedding-3-small",
		MaxRetries:           3,
		MinContentChars:      50,
		HealthPort:           9091,
	}
}

// LoadPipelineConfigFromEnv loads configuration with validation and
// fail-open fallback to defaults: never return an error, log and record
// metrics for every field that falls back.
func LoadPipelineConfigFromEnv(logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) *PipelineConfig {
	cfg := DefaultPipelineConfig()
	fallbackApplied := false

	warn := func(field string, warnings []string) {
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, w := range warnings {
			logger.Warn("configuration fallback applied", slog.String("field", field), slog.String("warning", w))
		}
	}

	cfg.DatabaseURL = envconfig.GetEnvString("DATABASE_URL", "")
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is not set; the RelationalStore adapter will fail to connect at startup")
	}

	defaultVectorHost := cfg.VectorStoreHost
	if host := hostFromDSN(cfg.DatabaseURL); host != "" {
		defaultVectorHost = host
	}
	cfg.VectorStoreHost = envconfig.GetEnvString("VECTOR_STORE_HOST", defaultVectorHost)

	result := pkgconfig.LoadEnvInt("VECTOR_STORE_PORT", cfg.VectorStorePort, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 65535)
	})
	cfg.VectorStorePort = result.Value.(int)
	if result.FallbackApplied {
		warn("vector_store_port", result.Warnings)
	}

	cfg.CacheHost = envconfig.GetEnvString("CACHE_HOST", cfg.CacheHost)

	result = pkgconfig.LoadEnvInt("CACHE_PORT", cfg.CachePort, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 65535)
	})
	cfg.CachePort = result.Value.(int)
	if result.FallbackApplied {
		warn("cache_port", result.Warnings)
	}

	cfg.BrokerAddr = envconfig.GetEnvString("BROKER_ADDR", cfg.BrokerAddr)

	providerResult := pkgconfig.LoadEnvWithFallback("EMBEDDER_PROVIDER", string(cfg.EmbedderProvider), validateEmbedderProvider)
	cfg.EmbedderProvider = EmbedderProvider(providerResult.Value.(string))
	if providerResult.FallbackApplied {
		warn("embedder_provider", providerResult.Warnings)
	}

	cfg.OpenAIAPIKey = envconfig.GetEnvString("OPENAI_API_KEY", "")
	cfg.OpenAIEmbeddingModel = envconfig.GetEnvString("OPENAI_EMBEDDING_MODEL", cfg.OpenAIEmbeddingModel)
	cfg.LocalEmbedderURL = envconfig.GetEnvString("LOCAL_EMBEDDER_URL", "")
	cfg.LocalEmbedderModel = envconfig.GetEnvString("LOCAL_EMBEDDER_MODEL", "")

	if cfg.EmbedderProvider == EmbedderProviderOpenAI && cfg.OpenAIAPIKey == "" {
		logger.Warn("EMBEDDER_PROVIDER=openai but OPENAI_API_KEY is not set; the embedder will fail to construct at startup")
	}
	if cfg.EmbedderProvider == EmbedderProviderLocal && cfg.LocalEmbedderURL == "" {
		logger.Warn("EMBEDDER_PROVIDER=local but LOCAL_EMBEDDER_URL is not set; the embedder will fail to construct at startup")
	}

	result = pkgconfig.LoadEnvInt("MAX_RETRIES", cfg.MaxRetries, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 20)
	})
	cfg.MaxRetries = result.Value.(int)
	if result.FallbackApplied {
		warn("max_retries", result.Warnings)
	}

	result = pkgconfig.LoadEnvInt("MIN_CONTENT_CHARS", cfg.MinContentChars, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 0, 100000)
	})
	cfg.MinContentChars = result.Value.(int)
	if result.FallbackApplied {
		warn("min_content_chars", result.Warnings)
	}

	result = pkgconfig.LoadEnvInt("HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	if result.FallbackApplied {
		warn("health_port", result.Warnings)
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg
}

// SourceCadence returns the per-source fresh-discovery cron expression for
// tag, honoring SOURCE_<TAG>_CADENCE (spec.md §6), falling back to
// DefaultSourceCadence. tag is upper-cased for the environment lookup;
// invalid expressions fall back with a logged warning.
func SourceCadence(logger *slog.Logger, tag string) string {
	envKey := fmt.Sprintf("SOURCE_%s_CADENCE", strings.ToUpper(tag))
	result := pkgconfig.LoadEnvWithFallback(envKey, DefaultSourceCadence, func(v string) error {
		// Same parser as the runner's cron.New(): five fields or a
		// descriptor such as "@every 15s".
		if _, err := cron.ParseStandard(v); err != nil {
			return fmt.Errorf("invalid cron schedule '%s': %w", v, err)
		}
		return nil
	})
	if result.FallbackApplied {
		for _, w := range result.Warnings {
			logger.Warn("configuration fallback applied", slog.String("field", "source_cadence"), slog.String("source", tag), slog.String("warning", w))
		}
	}
	return result.Value.(string)
}

func validateEmbedderProvider(v string) error {
	switch EmbedderProvider(v) {
	case EmbedderProviderOpenAI, EmbedderProviderLocal:
		return nil
	default:
		return fmt.Errorf("unrecognized embedder provider %q, expected %q or %q", v, EmbedderProviderOpenAI, EmbedderProviderLocal)
	}
}

// hostFromDSN extracts the host portion of a Postgres DSN for the
// VectorStoreHost default, since the vector store lives in the same
// Postgres instance as the RelationalStore (SPEC_FULL.md §6).
func hostFromDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Durations holds the per-call deadlines, poll interval, and shutdown grace
// window spec.md §5 names, kept alongside PipelineConfig for
// discoverability even though they are not environment-tunable per
// spec.md §6's "all other configuration is internal".
type Durations struct {
	PublisherDiscovery time.Duration
	PublisherFetch     time.Duration
	EmbeddingCall      time.Duration
	PollInterval       time.Duration
	ShutdownGrace      time.Duration
}

// DefaultDurations returns spec.md §5's stated timeout/interval defaults.
func DefaultDurations() Durations {
	return Durations{
		PublisherDiscovery: 30 * time.Second,
		PublisherFetch:     15 * time.Second,
		EmbeddingCall:      30 * time.Second,
		PollInterval:       30 * time.Second,
		ShutdownGrace:      10 * time.Second,
	}
}
