package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/gitctx/gitctx/internal/gitctxerr"
)

// GetQueryEmbedding returns the cached vector for key, if present.
func (s *Store) GetQueryEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	var v pgvector.Vector
	const q = `SELECT vector FROM query_cache WHERE cache_key = $1`
	err := s.pool.QueryRow(ctx, q, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, gitctxerr.StorageError("query cache lookup failed", err)
	}
	return v.Slice(), true, nil
}

// CacheQueryEmbedding stores vec under key, last-write-wins.
func (s *Store) CacheQueryEmbedding(ctx context.Context, key, text string, vec []float32, model string) error {
	const q = `
		INSERT INTO query_cache (cache_key, query_text, vector, model, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (cache_key) DO UPDATE SET
			query_text = EXCLUDED.query_text,
			vector     = EXCLUDED.vector,
			model      = EXCLUDED.model,
			updated_at = now();`
	_, err := s.pool.Exec(ctx, q, key, text, pgvector.NewVector(vec), model)
	if err != nil {
		return gitctxerr.StorageError("query cache write failed", err)
	}
	return nil
}
