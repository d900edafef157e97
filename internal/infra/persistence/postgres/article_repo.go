package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/repository"

	"github.com/lib/pq"
)

// ArticleRepo implements repository.ArticleRepository against PostgreSQL.
type ArticleRepo struct {
	db *sql.DB
}

// NewArticleRepo constructs an ArticleRepo.
func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

// ClaimPendingArticles selects up to limit PENDING articles, locking them
// FOR UPDATE SKIP LOCKED so concurrent embedding scheduler instances never
// double-claim (spec.md §4.7, §4.8).
func (r *ArticleRepo) ClaimPendingArticles(ctx context.Context, limit int) ([]entity.ArticleRecord, error) {
	const query = `
SELECT id, source, url, title, content, summary, keywords, images, published_at, published_ts, status, created_at
FROM articles
WHERE status = 'pending'
ORDER BY published_at DESC NULLS LAST, id ASC
LIMIT $1
FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ClaimPendingArticles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]entity.ArticleRecord, 0, limit)
	for rows.Next() {
		var a entity.ArticleRecord
		var status string
		if err := rows.Scan(&a.ID, &a.Source, &a.URL, &a.Title, &a.Content, &a.Summary,
			pq.Array(&a.Keywords), pq.Array(&a.Images), &a.PublishedAt, &a.PublishedTS, &status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("ClaimPendingArticles: scan: %w", err)
		}
		a.Status = entity.ArticleStatus(status)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// MarkArticlesCompleted batch-transitions articles PENDING -> COMPLETED
// after a successful VectorStore upsert (spec.md §4.8).
func (r *ArticleRepo) MarkArticlesCompleted(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET status = 'completed' WHERE url = ANY($1)`, pq.Array(urls))
	if err != nil {
		return fmt.Errorf("MarkArticlesCompleted: %w", err)
	}
	return nil
}

// Stats reports pending/completed article counters.
func (r *ArticleRepo) Stats(ctx context.Context) (repository.ArticleStats, error) {
	var stats repository.ArticleStats
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*) FILTER (WHERE status = 'completed'),
	COUNT(*) FILTER (WHERE status = 'pending')
FROM articles`).Scan(&stats.CompletedArticles, &stats.PendingArticles)
	if err != nil {
		return repository.ArticleStats{}, fmt.Errorf("Stats: %w", err)
	}
	return stats, nil
}
