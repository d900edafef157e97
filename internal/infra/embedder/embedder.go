// Package embedder provides batch text-to-vector embedding services with
// interchangeable remote-API and local-HTTP implementations.
package embedder

import (
	"context"
	"errors"
)

// Embedder is the capability contract a scheduler embeds article text
// against. Implementations detect their dimension once at construction;
// callers must verify every returned vector's length equals Dimension().
type Embedder interface {
	// EmbedDocuments embeds a batch of texts, returning one vector per
	// input text in the same order. On failure the whole batch fails;
	// there is no partial-success result.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector length this embedder produces.
	Dimension() int

	// ProviderName identifies the embedder implementation for logging
	// and metrics labels (e.g. "openai", "local-http").
	ProviderName() string
}

// ErrRateLimited marks a failure the scheduler should treat as a
// rate-limit-kind error: trigger cadence backoff and batch-size halving
// rather than the ordinary retry/circuit-breaker path.
var ErrRateLimited = errors.New("embedder rate limited")

// ErrDimensionMismatch is returned when a provider returns a vector whose
// length does not match the embedder's declared Dimension().
var ErrDimensionMismatch = errors.New("embedder returned vector with unexpected dimension")
