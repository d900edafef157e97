package repository

import (
	"context"

	"newsfeed-pipeline/internal/domain/entity"
)

// ArticleStats summarizes RelationalStore article counters.
type ArticleStats struct {
	CompletedArticles int64
	PendingArticles   int64
}

// ArticleRepository is the RelationalStore half of the capability
// contract that deals with ArticleRecords (spec.md §4.7).
type ArticleRepository interface {
	// ClaimPendingArticles returns up to limit PENDING articles ordered
	// by published_at DESC NULLS LAST, using the same skip-locked
	// pattern as ClaimPendingLinks.
	ClaimPendingArticles(ctx context.Context, limit int) ([]entity.ArticleRecord, error)

	// MarkArticlesCompleted batch-transitions articles PENDING->COMPLETED
	// after a successful VectorStore upsert.
	MarkArticlesCompleted(ctx context.Context, urls []string) error

	// Stats reports pending/completed article counters.
	Stats(ctx context.Context) (ArticleStats, error)
}
