package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"newsfeed-pipeline/internal/resilience/circuitbreaker"
	"newsfeed-pipeline/internal/resilience/retry"
)

// DefaultMaxWorkers bounds the fan-out pool a LocalHTTP embedder uses to
// embed a batch, per spec.md §4.6.
const DefaultMaxWorkers = 10

// sentinelProbeText is embedded once at construction to detect the
// provider's vector dimension; modelFamilyDimensions is consulted only
// when this probe fails.
const sentinelProbeText = "dimension probe"

// modelFamilyDimensions is the fallback table consulted when a sentinel
// probe call fails at construction (model family keyed by substring).
var modelFamilyDimensions = map[string]int{
	"minilm":     384,
	"mpnet":      768,
	"bge-small":  384,
	"bge-base":   768,
	"bge-large":  1024,
	"e5-small":   384,
	"e5-base":    768,
	"e5-large":   1024,
}

// LocalHTTP embeds one text per HTTP call against a self-hosted embedding
// model server, fanning the batch out across up to MaxWorkers goroutines
// and reassembling vectors in input order (spec.md §4.6: "the
// implementation MUST fan out ... and reassemble vectors in input
// order").
type LocalHTTP struct {
	httpClient     *http.Client
	url            string
	model          string
	dim            int
	maxWorkers     int
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// LocalHTTPConfig configures a LocalHTTP embedder.
type LocalHTTPConfig struct {
	URL        string
	Model      string
	MaxWorkers int
	Timeout    time.Duration
}

// DefaultLocalHTTPConfig returns the spec.md §5 defaults: 10 workers, 30s
// per-call deadline.
func DefaultLocalHTTPConfig(url, model string) LocalHTTPConfig {
	return LocalHTTPConfig{
		URL:        url,
		Model:      model,
		MaxWorkers: DefaultMaxWorkers,
		Timeout:    30 * time.Second,
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewLocalHTTP constructs a LocalHTTP embedder, detecting its dimension by
// embedding sentinelProbeText. If the probe call fails, it falls back to
// modelFamilyDimensions keyed by a substring match against cfg.Model.
func NewLocalHTTP(ctx context.Context, cfg LocalHTTPConfig) (*LocalHTTP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("local http embedder: url required")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	l := &LocalHTTP{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		url:            cfg.URL,
		model:          cfg.Model,
		maxWorkers:     cfg.MaxWorkers,
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmbedderConfig()),
		retryConfig:    retry.EmbedderConfig(),
	}

	probeVec, err := l.doEmbedOne(ctx, sentinelProbeText)
	if err != nil {
		dim, ok := dimensionForModelFamily(cfg.Model)
		if !ok {
			return nil, fmt.Errorf("local http embedder: dimension probe failed and no fallback for model %q: %w", cfg.Model, err)
		}
		slog.Warn("local embedder dimension probe failed, using model family fallback",
			slog.String("model", cfg.Model), slog.Int("dimension", dim), slog.String("error", err.Error()))
		l.dim = dim
		return l, nil
	}

	l.dim = len(probeVec)
	slog.Info("initialized local http embedder",
		slog.String("url", cfg.URL), slog.String("model", cfg.Model),
		slog.Int("dimension", l.dim), slog.Int("max_workers", l.maxWorkers))

	return l, nil
}

func dimensionForModelFamily(model string) (int, bool) {
	for family, dim := range modelFamilyDimensions {
		if containsFold(model, family) {
			return dim, true
		}
	}
	return 0, false
}

func containsFold(s, substr string) bool {
	return len(s) >= len(substr) && bytes.Contains(bytes.ToLower([]byte(s)), bytes.ToLower([]byte(substr)))
}

// Dimension implements Embedder.
func (l *LocalHTTP) Dimension() int { return l.dim }

// ProviderName implements Embedder.
func (l *LocalHTTP) ProviderName() string { return "local-http" }

// EmbedDocuments implements Embedder, fanning the batch out across
// l.maxWorkers goroutines and reassembling results by input index so the
// returned slice order always matches texts' order regardless of which
// goroutine finishes first.
func (l *LocalHTTP) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	sem := make(chan struct{}, l.maxWorkers)
	eg, egCtx := errgroup.WithContext(ctx)

	for i, text := range texts {
		idx, t := i, text
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			vec, err := l.embedOneWithRetry(egCtx, t)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", idx, err)
			}
			vectors[idx] = vec
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}

func (l *LocalHTTP) embedOneWithRetry(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, l.httpClient.Timeout)
	defer cancel()

	var vec []float32
	retryErr := retry.WithBackoff(ctx, l.retryConfig, func() error {
		cbResult, err := l.circuitBreaker.Execute(func() (interface{}, error) {
			return l.doEmbedOne(ctx, text)
		})
		if err != nil {
			return err
		}
		vec = cbResult.([]float32)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("local embed failed after retries: %w", retryErr)
	}
	return vec, nil
}

func (l *LocalHTTP) doEmbedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: l.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local embedder request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local embedder returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("local embedder returned empty vector")
	}
	if l.dim != 0 && len(out.Embedding) != l.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(out.Embedding), l.dim)
	}

	return out.Embedding, nil
}
