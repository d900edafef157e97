// Package scheduler implements EmbeddingScheduler (spec.md §4.5): turn
// PENDING ArticleRecords into COMPLETED vector points, batch by batch.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/infra/embedder"
	"newsfeed-pipeline/internal/repository"
	"newsfeed-pipeline/internal/resilience/retry"
)

// DefaultClaimLimit is K in spec.md §4.5: articles claimed per cycle.
const DefaultClaimLimit = 50

// DefaultCollectionName is the single VectorStore "collection" the core
// pipeline uses (spec.md §4.8). The pgvector VectorRepo ignores the name
// and stores every point in the article_vectors table.
const DefaultCollectionName = "article_embeddings"

// rateLimitBaseBackoff and rateLimitMaxBackoff implement spec.md §5's
// embedder backpressure: "the scheduler multiplicatively backs off the
// batch cadence (base 2s, cap 10s) and halves the batch size temporarily"
// whenever the embedder returns a rate-limit-kind error.
const (
	rateLimitBaseBackoff = 2 * time.Second
	rateLimitMaxBackoff  = 10 * time.Second
	minBatchSize         = 1
)

var (
	embeddingBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsfeed_embedding_batches_total",
			Help: "Total embedding batches processed by outcome",
		},
		[]string{"outcome"},
	)
	embeddingArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsfeed_embedding_articles_total",
			Help: "Total articles moved through the embedding scheduler by outcome",
		},
		[]string{"outcome"},
	)
	embeddingPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsfeed_embedding_pending_articles",
			Help: "Articles claimed in the current embedding cycle awaiting completion",
		},
	)
)

// Config tunes one Scheduler instance.
type Config struct {
	ClaimLimit     int
	CollectionName string
}

// DefaultConfig returns spec.md §4.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		ClaimLimit:     DefaultClaimLimit,
		CollectionName: DefaultCollectionName,
	}
}

// Scheduler implements spec.md §4.5's five-step cycle.
type Scheduler struct {
	articles repository.ArticleRepository
	vectors  repository.VectorRepository
	embed    embedder.Embedder
	cfg      Config

	mu         sync.Mutex
	batchLimit int           // current claim size, halved on rate-limit, restored on success
	backoff    time.Duration // current extra cadence delay, zero when not backing off
}

// New constructs a Scheduler.
func New(articles repository.ArticleRepository, vectors repository.VectorRepository, embed embedder.Embedder, cfg Config) *Scheduler {
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = DefaultClaimLimit
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = DefaultCollectionName
	}
	return &Scheduler{articles: articles, vectors: vectors, embed: embed, cfg: cfg, batchLimit: cfg.ClaimLimit}
}

// CadenceBackoff returns the extra delay the run loop should add on top of
// its base poll interval, per the current rate-limit backoff state. Zero
// when the scheduler isn't backing off.
func (s *Scheduler) CadenceBackoff() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoff
}

// currentBatchLimit returns the claim size for the next cycle, halved from
// cfg.ClaimLimit while backing off from a rate-limit error.
func (s *Scheduler) currentBatchLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchLimit
}

// onRateLimited records a rate-limit-kind embed failure: doubles the
// cadence backoff (base 2s, cap 10s) and halves the batch size, both
// clamped to their floors.
func (s *Scheduler) onRateLimited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backoff == 0 {
		s.backoff = rateLimitBaseBackoff
	} else {
		s.backoff *= 2
		if s.backoff > rateLimitMaxBackoff {
			s.backoff = rateLimitMaxBackoff
		}
	}
	s.batchLimit /= 2
	if s.batchLimit < minBatchSize {
		s.batchLimit = minBatchSize
	}
	slog.Warn("scheduler: embedder rate limited, backing off",
		slog.Duration("backoff", s.backoff), slog.Int("batch_limit", s.batchLimit))
}

// resetBackoff clears any rate-limit backoff once a cycle embeds
// successfully, restoring the configured batch size and base cadence.
func (s *Scheduler) resetBackoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backoff == 0 && s.batchLimit == s.cfg.ClaimLimit {
		return
	}
	s.backoff = 0
	s.batchLimit = s.cfg.ClaimLimit
}

// RunCycle executes one pass of spec.md §4.5's algorithm: claim, compose
// text, embed the whole batch, build points, upsert with backoff, commit.
// Returns the number of articles claimed this cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (int, error) {
	claimed, err := s.articles.ClaimPendingArticles(ctx, s.currentBatchLimit())
	if err != nil {
		return 0, fmt.Errorf("scheduler: claim: %w", err)
	}
	if len(claimed) == 0 {
		return 0, nil
	}
	embeddingPendingGauge.Set(float64(len(claimed)))
	defer embeddingPendingGauge.Set(0)

	var articles []entity.ArticleRecord
	var texts []string
	for _, a := range claimed {
		text := composeEmbeddingText(a)
		if text == "" {
			slog.WarnContext(ctx, "scheduler: empty embedding text, skipping article", slog.String("url", a.URL))
			embeddingArticlesTotal.WithLabelValues("empty_text").Inc()
			continue
		}
		articles = append(articles, a)
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return len(claimed), nil
	}

	vectors, err := s.embed.EmbedDocuments(ctx, texts)
	if err != nil {
		if errors.Is(err, embedder.ErrRateLimited) {
			embeddingBatchesTotal.WithLabelValues("rate_limited").Inc()
			s.onRateLimited()
			slog.WarnContext(ctx, "scheduler: embedder rate limited, retrying next cycle at reduced cadence",
				slog.Int("batch_size", len(texts)), slog.String("error", err.Error()))
			return len(claimed), nil
		}
		embeddingBatchesTotal.WithLabelValues("embed_failed").Inc()
		slog.WarnContext(ctx, "scheduler: batch embedding failed, retrying next cycle",
			slog.Int("batch_size", len(texts)), slog.String("error", err.Error()))
		return len(claimed), nil
	}
	if len(vectors) != len(texts) {
		embeddingBatchesTotal.WithLabelValues("embed_failed").Inc()
		return len(claimed), fmt.Errorf("scheduler: embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	s.resetBackoff()

	points := make([]entity.VectorPoint, len(articles))
	urls := make([]string, len(articles))
	for i, a := range articles {
		article := a
		points[i] = entity.NewVectorPoint(&article, vectors[i])
		urls[i] = a.URL
	}

	upsertErr := retry.WithBackoff(ctx, retry.VectorStoreConfig(), func() error {
		return s.vectors.UpsertPoints(ctx, s.cfg.CollectionName, points)
	})
	if upsertErr != nil {
		embeddingBatchesTotal.WithLabelValues("upsert_failed").Inc()
		slog.ErrorContext(ctx, "scheduler: vector upsert exhausted retries, leaving articles pending",
			slog.Int("batch_size", len(points)), slog.String("error", upsertErr.Error()))
		return len(claimed), nil
	}

	if err := s.articles.MarkArticlesCompleted(ctx, urls); err != nil {
		embeddingBatchesTotal.WithLabelValues("mark_completed_failed").Inc()
		return len(claimed), fmt.Errorf("scheduler: mark completed: %w", err)
	}

	embeddingBatchesTotal.WithLabelValues("success").Inc()
	embeddingArticlesTotal.WithLabelValues("completed").Add(float64(len(points)))
	slog.InfoContext(ctx, "embedding cycle complete", slog.Int("claimed", len(claimed)), slog.Int("completed", len(points)))
	return len(claimed), nil
}

// composeEmbeddingText implements spec.md §4.5 step 2: "title + '. ' +
// summary" when both are present, else content; newlines stripped.
func composeEmbeddingText(a entity.ArticleRecord) string {
	var text string
	if a.Title != "" && a.Summary != "" {
		text = a.Title + ". " + a.Summary
	} else {
		text = a.Content
	}
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return strings.TrimSpace(text)
}
