package store

import (
	"context"
	"strconv"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/gitctx/gitctx/internal/gitctxerr"
	"github.com/gitctx/gitctx/pkg/models"
)

// AddChunksBatch writes one row per (embedding, location) pair. Writes are
// idempotent on id: re-inserting the same id replaces the row.
func (s *Store) AddChunksBatch(ctx context.Context, embeddings []models.Embedding, chunks []models.CodeChunk, locations map[string][]models.BlobLocation) error {
	if len(embeddings) == 0 {
		return nil
	}

	chunkByKey := make(map[string]models.CodeChunk, len(chunks))
	for _, c := range chunks {
		chunkByKey[chunkKey(c.BlobSHA, c.ChunkIndex)] = c
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return gitctxerr.StorageError("failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO chunks (
			id, blob_sha, chunk_index, total_chunks, content, start_line, end_line,
			language, model, vector, commit_sha, file_path, author_name, author_email,
			commit_date, commit_message, is_head, is_merge
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
		)
		ON CONFLICT (id) DO UPDATE SET
			content        = EXCLUDED.content,
			start_line     = EXCLUDED.start_line,
			end_line       = EXCLUDED.end_line,
			language       = EXCLUDED.language,
			model          = EXCLUDED.model,
			vector         = EXCLUDED.vector,
			commit_sha     = EXCLUDED.commit_sha,
			file_path      = EXCLUDED.file_path,
			author_name    = EXCLUDED.author_name,
			author_email   = EXCLUDED.author_email,
			commit_date    = EXCLUDED.commit_date,
			commit_message = EXCLUDED.commit_message,
			is_head        = EXCLUDED.is_head,
			is_merge       = EXCLUDED.is_merge;`

	for _, emb := range embeddings {
		chunk := chunkByKey[chunkKey(emb.BlobSHA, emb.ChunkIndex)]
		locs := locations[emb.BlobSHA]
		for i, loc := range locs {
			id := rowID(emb.BlobSHA, emb.ChunkIndex, i)
			_, err := tx.Exec(ctx, q,
				id, emb.BlobSHA, emb.ChunkIndex, chunk.TotalChunks, chunk.Content, chunk.StartLine, chunk.EndLine,
				chunk.Language, emb.Model, pgvector.NewVector(emb.Vector), loc.CommitSHA, loc.FilePath,
				loc.AuthorName, loc.AuthorEmail, loc.CommitDate, loc.CommitMessage, loc.IsHead, loc.IsMerge,
			)
			if err != nil {
				return gitctxerr.StorageError("insert chunk failed", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return gitctxerr.StorageError("failed to commit batch", err)
	}
	return nil
}

// RefreshLocations updates is_head/is_merge/commit metadata for every row of
// an already-embedded blob, without re-embedding. For each stored chunk it
// deletes every existing row and inserts one row per passed location,
// reusing the stored content and vector, so is_head is recomputed both ways
// every run and rows for locations not passed in are removed. The passed
// locations are the blob's currently-reachable set, computed fresh by the
// walker.
func (s *Store) RefreshLocations(ctx context.Context, blobSHA string, locations []models.BlobLocation) error {
	if len(locations) == 0 {
		return nil
	}
	existing, err := s.existingChunkShape(ctx, blobSHA)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return gitctxerr.StorageError("failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	const del = `DELETE FROM chunks WHERE blob_sha = $1 AND chunk_index = $2`
	const ins = `
		INSERT INTO chunks (
			id, blob_sha, chunk_index, total_chunks, content, start_line, end_line,
			language, model, vector, commit_sha, file_path, author_name, author_email,
			commit_date, commit_message, is_head, is_merge
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	for _, shape := range existing {
		if _, err := tx.Exec(ctx, del, blobSHA, shape.chunkIndex); err != nil {
			return gitctxerr.StorageError("refresh delete failed", err)
		}
		for i, loc := range locations {
			id := rowID(blobSHA, shape.chunkIndex, i)
			_, err := tx.Exec(ctx, ins,
				id, blobSHA, shape.chunkIndex, shape.totalChunks, shape.content, shape.startLine, shape.endLine,
				shape.language, shape.model, pgvector.NewVector(shape.vector), loc.CommitSHA, loc.FilePath,
				loc.AuthorName, loc.AuthorEmail, loc.CommitDate, loc.CommitMessage, loc.IsHead, loc.IsMerge,
			)
			if err != nil {
				return gitctxerr.StorageError("refresh insert failed", err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return gitctxerr.StorageError("failed to commit refresh", err)
	}
	return nil
}

type chunkShape struct {
	chunkIndex  int
	totalChunks int
	content     string
	startLine   int
	endLine     int
	language    string
	model       string
	vector      []float32
}

func (s *Store) existingChunkShape(ctx context.Context, blobSHA string) ([]chunkShape, error) {
	const q = `
		SELECT DISTINCT ON (chunk_index)
			chunk_index, total_chunks, content, start_line, end_line, language, model, vector
		FROM chunks WHERE blob_sha = $1
		ORDER BY chunk_index`
	rows, err := s.pool.Query(ctx, q, blobSHA)
	if err != nil {
		return nil, gitctxerr.StorageError("failed to read existing chunk shape", err)
	}
	defer rows.Close()

	var out []chunkShape
	for rows.Next() {
		var cs chunkShape
		var v pgvector.Vector
		if err := rows.Scan(&cs.chunkIndex, &cs.totalChunks, &cs.content, &cs.startLine, &cs.endLine, &cs.language, &cs.model, &v); err != nil {
			return nil, gitctxerr.StorageError("failed to scan chunk shape", err)
		}
		cs.vector = v.Slice()
		out = append(out, cs)
	}
	return out, rows.Err()
}

// IsBlobIndexed reports whether blobSHA is recorded in indexed_blobs for
// model. SaveIndexState records every walked blob, so this is also true for
// a blob that an earlier run skipped without storing embeddings.
func (s *Store) IsBlobIndexed(ctx context.Context, blobSHA, model string) (bool, error) {
	var exists bool
	const q = `SELECT EXISTS(SELECT 1 FROM indexed_blobs WHERE blob_sha = $1 AND model = $2)`
	if err := s.pool.QueryRow(ctx, q, blobSHA, model).Scan(&exists); err != nil {
		return false, gitctxerr.StorageError("indexed-blob lookup failed", err)
	}
	return exists, nil
}

// Search runs a pure cosine-distance nearest-neighbor search, ascending
// (closest first). When headOnly is set, only rows whose location is in the
// current HEAD tree are considered. No lexical ranking is applied.
func (s *Store) Search(ctx context.Context, vec []float32, limit int, headOnly bool) ([]models.ChunkRecord, error) {
	where := "TRUE"
	if headOnly {
		where = "is_head"
	}
	q := `
		SELECT id, blob_sha, chunk_index, content, start_line, end_line, language, model,
			commit_sha, file_path, author_name, author_email, commit_date, commit_message, is_head, is_merge,
			vector <=> $1 AS distance
		FROM chunks
		WHERE ` + where + `
		ORDER BY distance ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, gitctxerr.StorageError("search query failed", err)
	}
	defer rows.Close()

	var out []models.ChunkRecord
	for rows.Next() {
		var r models.ChunkRecord
		if err := rows.Scan(
			&r.ID, &r.BlobSHA, &r.ChunkIndex, &r.Content, &r.StartLine, &r.EndLine, &r.Language, &r.Model,
			&r.Location.CommitSHA, &r.Location.FilePath, &r.Location.AuthorName, &r.Location.AuthorEmail,
			&r.Location.CommitDate, &r.Location.CommitMessage, &r.Location.IsHead, &r.Location.IsMerge,
			&r.Distance,
		); err != nil {
			return nil, gitctxerr.StorageError("search scan failed", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func chunkKey(blobSHA string, chunkIndex int) string {
	return blobSHA + "#" + strconv.Itoa(chunkIndex)
}

func rowID(blobSHA string, chunkIndex, locationIndex int) string {
	return blobSHA + "#" + strconv.Itoa(chunkIndex) + "#" + strconv.Itoa(locationIndex)
}
