package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/gitctx/gitctx/internal/gitctxerr"
	"github.com/gitctx/gitctx/pkg/models"
)

// SaveIndexState persists the singleton index state row plus the set of
// blob SHAs now indexed under model.
func (s *Store) SaveIndexState(ctx context.Context, lastCommit string, blobSHAs []string, model string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return gitctxerr.StorageError("failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	const upsertState = `
		INSERT INTO index_state (id, last_commit, embedding_model, updated_at)
		VALUES (0, $1, $2, now())
		ON CONFLICT (id) DO UPDATE SET
			last_commit     = EXCLUDED.last_commit,
			embedding_model = EXCLUDED.embedding_model,
			updated_at      = now();`
	if _, err := tx.Exec(ctx, upsertState, lastCommit, model); err != nil {
		return gitctxerr.StorageError("failed to save index state", err)
	}

	const upsertBlob = `
		INSERT INTO indexed_blobs (blob_sha, model) VALUES ($1, $2)
		ON CONFLICT (blob_sha, model) DO NOTHING;`
	for _, sha := range blobSHAs {
		if _, err := tx.Exec(ctx, upsertBlob, sha, model); err != nil {
			return gitctxerr.StorageError("failed to record indexed blob", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return gitctxerr.StorageError("failed to commit index state", err)
	}
	return nil
}

// LoadIndexState returns the current index state, if one has been saved.
func (s *Store) LoadIndexState(ctx context.Context) (models.IndexState, bool, error) {
	var state models.IndexState
	const q = `SELECT last_commit, embedding_model, EXTRACT(EPOCH FROM updated_at)::BIGINT FROM index_state WHERE id = 0`
	err := s.pool.QueryRow(ctx, q).Scan(&state.LastCommit, &state.EmbeddingModel, &state.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.IndexState{}, false, nil
		}
		return models.IndexState{}, false, gitctxerr.StorageError("failed to load index state", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT blob_sha FROM indexed_blobs WHERE model = $1`, state.EmbeddingModel)
	if err != nil {
		return models.IndexState{}, false, gitctxerr.StorageError("failed to load indexed blobs", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sha string
		if err := rows.Scan(&sha); err != nil {
			return models.IndexState{}, false, gitctxerr.StorageError("failed to scan indexed blob", err)
		}
		state.IndexedBlobSHAs = append(state.IndexedBlobSHAs, sha)
	}
	return state, true, rows.Err()
}
