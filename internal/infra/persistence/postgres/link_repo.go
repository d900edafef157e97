package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// LinkRepo implements repository.LinkRepository against PostgreSQL.
type LinkRepo struct {
	db *sql.DB
}

// NewLinkRepo constructs a LinkRepo.
func NewLinkRepo(db *sql.DB) repository.LinkRepository {
	return &LinkRepo{db: db}
}

// UpsertLinkRecords batch-upserts by url; on conflict only published_at is
// refreshed, leaving status/tried_count untouched (spec.md §4.7).
func (r *LinkRepo) UpsertLinkRecords(ctx context.Context, links []entity.LinkRecord) error {
	if len(links) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpsertLinkRecords: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO links (source, url, published_at, status, tried_count)
VALUES ($1, $2, $3, 'pending', 0)
ON CONFLICT (url) DO UPDATE SET published_at = EXCLUDED.published_at`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("UpsertLinkRecords: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, link := range links {
		if _, err := stmt.ExecContext(ctx, link.Source, link.URL, link.PublishedAt); err != nil {
			return fmt.Errorf("UpsertLinkRecords: exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("UpsertLinkRecords: commit: %w", err)
	}
	return nil
}

// ClaimPendingLinks selects up to limit PENDING links with
// tried_count < maxRetries, locking the selected rows FOR UPDATE SKIP
// LOCKED so concurrent dispatcher instances never double-claim (spec.md
// §4.7, §5).
func (r *LinkRepo) ClaimPendingLinks(ctx context.Context, source string, limit, maxRetries int) ([]entity.LinkRecord, error) {
	query := `
SELECT id, source, url, published_at, status, tried_count, last_tried_at
FROM links
WHERE status = 'pending' AND tried_count < $1`
	args := []interface{}{maxRetries}

	if source != "" {
		query += " AND source = $2"
		args = append(args, source)
		query += " ORDER BY published_at DESC NULLS LAST, id ASC LIMIT $3"
		args = append(args, limit)
	} else {
		query += " ORDER BY published_at DESC NULLS LAST, id ASC LIMIT $2"
		args = append(args, limit)
	}
	query += " FOR UPDATE SKIP LOCKED"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ClaimPendingLinks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	links := make([]entity.LinkRecord, 0, limit)
	for rows.Next() {
		var l entity.LinkRecord
		var status string
		if err := rows.Scan(&l.ID, &l.Source, &l.URL, &l.PublishedAt, &status, &l.TriedCount, &l.LastTriedAt); err != nil {
			return nil, fmt.Errorf("ClaimPendingLinks: scan: %w", err)
		}
		l.Status = entity.LinkStatus(status)
		links = append(links, l)
	}
	return links, rows.Err()
}

// RecordFetchOutcome atomically updates the link's retry bookkeeping and,
// on success, inserts the fetched article (spec.md §7 "Persistence
// conflict": a unique-violation on articles.url during insert is treated
// as success, since it means a concurrent dispatcher already landed the
// same article).
func (r *LinkRepo) RecordFetchOutcome(ctx context.Context, linkID int64, outcome repository.FetchOutcomeKind, maxRetries int, article *entity.ArticleRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("RecordFetchOutcome: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	switch outcome {
	case repository.OutcomeSuccess:
		if article == nil {
			return fmt.Errorf("RecordFetchOutcome: OutcomeSuccess requires a non-nil article")
		}
		if err := insertArticle(ctx, tx, article); err != nil {
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
				return fmt.Errorf("RecordFetchOutcome: insert article: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE links SET status = 'completed', tried_count = tried_count + 1, last_tried_at = NOW()
WHERE id = $1`, linkID); err != nil {
			return fmt.Errorf("RecordFetchOutcome: mark completed: %w", err)
		}

	case repository.OutcomeTerminal:
		if _, err := tx.ExecContext(ctx, `
UPDATE links SET status = 'failed', tried_count = tried_count + 1, last_tried_at = NOW()
WHERE id = $1`, linkID); err != nil {
			return fmt.Errorf("RecordFetchOutcome: mark failed: %w", err)
		}

	case repository.OutcomeRecoverable:
		if _, err := tx.ExecContext(ctx, `
UPDATE links SET
	tried_count = tried_count + 1,
	last_tried_at = NOW(),
	status = CASE WHEN tried_count + 1 >= $2 THEN 'failed' ELSE 'pending' END
WHERE id = $1`, linkID, maxRetries); err != nil {
			return fmt.Errorf("RecordFetchOutcome: record retry: %w", err)
		}

	default:
		return fmt.Errorf("RecordFetchOutcome: unknown outcome kind %d", outcome)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("RecordFetchOutcome: commit: %w", err)
	}
	return nil
}

func insertArticle(ctx context.Context, tx *sql.Tx, article *entity.ArticleRecord) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO articles (source, url, title, content, summary, keywords, images, published_at, published_ts, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		article.Source, article.URL, article.Title, article.Content, article.Summary,
		pq.Array(article.Keywords), pq.Array(article.Images),
		article.PublishedAt, article.PublishedTS, string(entity.ArticleStatusPending))
	return err
}

// Stats reports pending/failed link counters (spec.md §4.7 "stats()").
func (r *LinkRepo) Stats(ctx context.Context) (repository.LinkStats, error) {
	var stats repository.LinkStats
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'failed')
FROM links`).Scan(&stats.PendingLinks, &stats.FailedLinks)
	if err != nil {
		return repository.LinkStats{}, fmt.Errorf("Stats: %w", err)
	}
	return stats, nil
}
