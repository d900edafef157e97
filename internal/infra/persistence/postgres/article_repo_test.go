package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed-pipeline/internal/domain/entity"
	pg "newsfeed-pipeline/internal/infra/persistence/postgres"
)

func TestArticleRepo_ClaimPendingArticles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id", "source", "url", "title", "content", "summary", "keywords", "images", "published_at", "published_ts", "status", "created_at"}).
		AddRow(int64(1), "example", "https://example.com/a", "Title", "Content", "", "{}", "{}", time.Now(), int64(0), "pending", time.Now())

	mock.ExpectQuery("SELECT id, source, url, title, content").WillReturnRows(rows)

	repo := pg.NewArticleRepo(db)
	articles, err := repo.ClaimPendingArticles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, entity.ArticleStatusPending, articles[0].Status)
}

func TestArticleRepo_MarkArticlesCompleted_Empty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewArticleRepo(db)
	assert.NoError(t, repo.MarkArticlesCompleted(context.Background(), nil))
}

func TestArticleRepo_MarkArticlesCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE articles SET status = 'completed'").WillReturnResult(sqlmock.NewResult(0, 2))

	repo := pg.NewArticleRepo(db)
	err = repo.MarkArticlesCompleted(context.Background(), []string{"https://example.com/a", "https://example.com/b"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepo_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"completed", "pending"}).AddRow(int64(5), int64(2))
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	repo := pg.NewArticleRepo(db)
	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.CompletedArticles)
	assert.Equal(t, int64(2), stats.PendingArticles)
}
