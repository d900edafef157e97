package postgres

import "database/sql"

// MigrateUp creates the links, articles, and article_vectors tables plus
// their indexes. It is idempotent: every statement uses IF NOT EXISTS, so
// it is safe to run on every process start (spec.md §3 DATA MODEL).
func MigrateUp(db *sql.DB) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS links (
			id              BIGSERIAL PRIMARY KEY,
			source          TEXT NOT NULL,
			url             TEXT NOT NULL UNIQUE,
			published_at    TIMESTAMPTZ,
			status          VARCHAR(20) NOT NULL DEFAULT 'pending',
			tried_count     INT NOT NULL DEFAULT 0,
			last_tried_at   TIMESTAMPTZ,
			CONSTRAINT chk_links_status CHECK (status IN ('pending', 'completed', 'failed'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_claim
			ON links(source, status, published_at DESC, id ASC)
			WHERE status = 'pending'`,

		`CREATE TABLE IF NOT EXISTS articles (
			id              BIGSERIAL PRIMARY KEY,
			source          TEXT NOT NULL,
			url             TEXT NOT NULL UNIQUE,
			title           TEXT NOT NULL,
			content         TEXT NOT NULL,
			summary         TEXT,
			keywords        TEXT[] NOT NULL DEFAULT '{}',
			images          TEXT[] NOT NULL DEFAULT '{}',
			published_at    TIMESTAMPTZ NOT NULL,
			published_ts    BIGINT NOT NULL,
			status          VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_articles_status CHECK (status IN ('pending', 'completed'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_claim
			ON articles(published_at DESC NULLS LAST, id ASC)
			WHERE status = 'pending'`,

		`CREATE TABLE IF NOT EXISTS article_vectors (
			article_url     TEXT PRIMARY KEY REFERENCES articles(url) ON DELETE CASCADE,
			point_id        UUID NOT NULL UNIQUE,
			embedding       vector NOT NULL,
			dimension       INT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// EnsureVectorIndex creates the ivfflat similarity index on
// article_vectors.embedding. Split out from MigrateUp because pgvector
// requires at least a few rows present before the index is useful;
// callers run it after the first embedding batch lands.
func EnsureVectorIndex(db *sql.DB) error {
	_, err := db.Exec(`
CREATE INDEX IF NOT EXISTS idx_article_vectors_embedding
    ON article_vectors USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)
	return err
}
