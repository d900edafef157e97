package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/repository"

	"github.com/pgvector/pgvector-go"
)

// DefaultUpsertTimeout bounds a single batch upsert call.
const DefaultUpsertTimeout = 10 * time.Second

// VectorRepo implements repository.VectorRepository against PostgreSQL +
// pgvector. Each row of article_vectors is keyed by the article url and
// holds the point id, the embedding and its dimension. The VectorPoint
// payload is not written: its fields stay in the articles row that
// article_vectors.article_url references.
type VectorRepo struct {
	db *sql.DB
}

// NewVectorRepo constructs a VectorRepo. The name argument (the
// "collection") that its methods take is accepted for interface parity
// with a dedicated vector database but ignored here: PostgreSQL has one
// article_vectors table regardless of which logical collection the caller
// names.
func NewVectorRepo(db *sql.DB) repository.VectorRepository {
	return &VectorRepo{db: db}
}

// EnsureCollection is a no-op beyond validating dim against any rows
// already present: migrate.go already created article_vectors with an
// unconstrained vector column, so the first UpsertPoints call fixes the
// effective dimension.
func (r *VectorRepo) EnsureCollection(ctx context.Context, name string, dim int) error {
	var existing sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT dimension FROM article_vectors LIMIT 1`).Scan(&existing)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureCollection: %w", err)
	}
	if existing.Valid && int(existing.Int64) != dim {
		return fmt.Errorf("EnsureCollection: existing vectors have dimension %d, want %d", existing.Int64, dim)
	}
	return nil
}

// EnsurePayloadIndexes creates the ivfflat similarity index and nothing
// else. fields is ignored: no per-field payload index (source,
// published_ts, status, keywords) is created here or by migrate.go, whose
// only articles index covers pending rows ordered by published_at.
func (r *VectorRepo) EnsurePayloadIndexes(ctx context.Context, name string, fields map[string]repository.PayloadIndexKind) error {
	return EnsureVectorIndex(r.db)
}

// UpsertPoints batch-upserts embeddings keyed by the originating
// article's url, using the cosine distance operator family
// (vector_cosine_ops, spec.md §4.8).
func (r *VectorRepo) UpsertPoints(ctx context.Context, name string, points []entity.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultUpsertTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpsertPoints: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO article_vectors (article_url, point_id, embedding, dimension, created_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (article_url) DO UPDATE SET
	point_id  = EXCLUDED.point_id,
	embedding = EXCLUDED.embedding,
	dimension = EXCLUDED.dimension`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("UpsertPoints: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range points {
		vec := pgvector.NewVector(p.Vector)
		if _, err := stmt.ExecContext(ctx, p.Payload.Link, p.ID, vec, len(p.Vector)); err != nil {
			return fmt.Errorf("UpsertPoints: exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("UpsertPoints: commit: %w", err)
	}
	return nil
}
