package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"newsfeed-pipeline/internal/resilience/circuitbreaker"
	"newsfeed-pipeline/internal/resilience/retry"
)

// knownModelDimensions is the static model->dimension table consulted at
// construction, mirroring the local embedder's sentinel-probe fallback.
var knownModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// RemoteOpenAI embeds text through an OpenAI-compatible embeddings API.
// Concurrency is bounded by the API itself; this type adds no client-side
// worker pool (grounded on teacher internal/infra/summarizer/openai.go's
// circuit-breaker + retry wrapping, generalized from chat completions to
// CreateEmbeddings).
type RemoteOpenAI struct {
	client         *openai.Client
	model          string
	dim            int
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewRemoteOpenAI constructs a RemoteOpenAI embedder. baseURL, when
// non-empty, points the client at an OpenAI-compatible endpoint other than
// the default (self-hosted gateways, Azure-style proxies).
func NewRemoteOpenAI(apiKey, model, baseURL string) (*RemoteOpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("remote openai embedder: api key required")
	}
	if model == "" {
		return nil, errors.New("remote openai embedder: model required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	dim, ok := knownModelDimensions[model]
	if !ok {
		return nil, fmt.Errorf("remote openai embedder: unknown model %q, add it to knownModelDimensions", model)
	}

	slog.Info("initialized remote openai embedder",
		slog.String("model", model),
		slog.Int("dimension", dim))

	return &RemoteOpenAI{
		client:         openai.NewClientWithConfig(cfg),
		model:          model,
		dim:            dim,
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmbedderConfig()),
		retryConfig:    retry.EmbedderConfig(),
	}, nil
}

// Dimension implements Embedder.
func (r *RemoteOpenAI) Dimension() int { return r.dim }

// ProviderName implements Embedder.
func (r *RemoteOpenAI) ProviderName() string { return "openai" }

// EmbedDocuments implements Embedder.
func (r *RemoteOpenAI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var vectors [][]float32

	retryErr := retry.WithBackoff(ctx, r.retryConfig, func() error {
		cbResult, err := r.circuitBreaker.Execute(func() (interface{}, error) {
			return r.doEmbed(ctx, texts)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("embedder circuit breaker open, request rejected",
					slog.String("service", "openai-embeddings"),
					slog.String("state", r.circuitBreaker.State().String()))
				return fmt.Errorf("embedder unavailable: circuit breaker open")
			}
			return err
		}
		vectors = cbResult.([][]float32)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("openai embed failed after retries: %w", retryErr)
	}

	return vectors, nil
}

func (r *RemoteOpenAI) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()

	resp, err := r.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(r.model),
	})
	duration := time.Since(start)

	if err != nil {
		if isRateLimitError(err) {
			slog.WarnContext(ctx, "embedder rate limited",
				slog.Int("batch_size", len(texts)), slog.Duration("duration", duration))
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		slog.ErrorContext(ctx, "embedder call failed",
			slog.Int("batch_size", len(texts)), slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("openai embeddings api error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings api returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if len(d.Embedding) != r.dim {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), r.dim)
		}
		vectors[d.Index] = d.Embedding
	}

	slog.InfoContext(ctx, "embedded batch",
		slog.Int("batch_size", len(texts)), slog.Duration("duration", duration))

	return vectors, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}
