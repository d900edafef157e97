// Package repository defines the RelationalStore and VectorStore
// capability contracts (spec.md §4.7, §4.8).
package repository

import (
	"context"

	"newsfeed-pipeline/internal/domain/entity"
)

// FetchOutcomeKind classifies the result of one PublisherAdapter.Fetch
// call, driving the LinkRecord status transition in RecordFetchOutcome.
type FetchOutcomeKind int

const (
	// OutcomeSuccess: a valid ArticleRecord was produced.
	OutcomeSuccess FetchOutcomeKind = iota
	// OutcomeRecoverable: a transient or content-quality failure; bump
	// tried_count, transition to FAILED only once the ceiling is reached.
	OutcomeRecoverable
	// OutcomeTerminal: a logical mismatch (ErrURLNotOwned); fail
	// immediately regardless of tried_count.
	OutcomeTerminal
)

// LinkStats summarizes RelationalStore link counters for observability
// (spec.md §4.7 "stats()").
type LinkStats struct {
	PendingLinks int64
	FailedLinks  int64
}

// LinkRepository is the RelationalStore half of the capability contract
// that deals with LinkRecords (spec.md §4.7).
type LinkRepository interface {
	// UpsertLinkRecords batch-upserts by url; on conflict it updates
	// published_at only and leaves status/tried_count untouched.
	UpsertLinkRecords(ctx context.Context, links []entity.LinkRecord) error

	// ClaimPendingLinks returns up to limit PENDING links with
	// tried_count < maxRetries, ordered by published_at DESC NULLS LAST,
	// id ASC, using skip-locked semantics for the duration of the call.
	// When source is non-empty, results are restricted to that source.
	ClaimPendingLinks(ctx context.Context, source string, limit, maxRetries int) ([]entity.LinkRecord, error)

	// RecordFetchOutcome atomically updates the LinkRecord (status,
	// tried_count, last_tried_at) and, on OutcomeSuccess, inserts article
	// in the same transaction. A unique-violation on article.url is
	// treated as OutcomeSuccess (spec.md §7 "Persistence conflict").
	RecordFetchOutcome(ctx context.Context, linkID int64, outcome FetchOutcomeKind, maxRetries int, article *entity.ArticleRecord) error

	// Stats reports pending/failed link counters.
	Stats(ctx context.Context) (LinkStats, error)
}
