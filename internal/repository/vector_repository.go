package repository

import (
	"context"

	"newsfeed-pipeline/internal/domain/entity"
)

// PayloadIndexKind names the index type ensured for a VectorStore
// payload field (spec.md §4.8).
type PayloadIndexKind string

const (
	PayloadIndexKeyword      PayloadIndexKind = "keyword"
	PayloadIndexInteger      PayloadIndexKind = "integer"
	PayloadIndexKeywordArray PayloadIndexKind = "keyword[]"
)

// VectorRepository is the VectorStore capability contract (spec.md §4.8).
type VectorRepository interface {
	// EnsureCollection is idempotent; it fails only if an existing
	// collection has a conflicting dimension.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// EnsurePayloadIndexes is idempotent.
	EnsurePayloadIndexes(ctx context.Context, name string, fields map[string]PayloadIndexKind) error

	// UpsertPoints is a batch, atomic-per-call upsert.
	UpsertPoints(ctx context.Context, name string, points []entity.VectorPoint) error
}
