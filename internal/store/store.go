// Package store is the denormalized vector store: a Postgres/pgvector
// schema holding one row per (chunk, location) pair, a query embedding
// cache, and the singleton index state record, guarded by an exclusive
// file lock during indexing.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitctx/gitctx/internal/gitctxerr"
	"github.com/gitctx/gitctx/pkg/models"
)

// ChunkStore is the full contract the index and search orchestrators use.
type ChunkStore interface {
	Migrate(ctx context.Context, dim int) error
	AddChunksBatch(ctx context.Context, embeddings []models.Embedding, chunks []models.CodeChunk, locations map[string][]models.BlobLocation) error
	RefreshLocations(ctx context.Context, blobSHA string, locations []models.BlobLocation) error
	Optimize(ctx context.Context) error
	Search(ctx context.Context, vec []float32, limit int, headOnly bool) ([]models.ChunkRecord, error)
	Count(ctx context.Context) (int, error)
	GetStatistics(ctx context.Context) (models.Statistics, error)
	GetQueryEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	CacheQueryEmbedding(ctx context.Context, key, text string, vec []float32, model string) error
	SaveIndexState(ctx context.Context, lastCommit string, blobSHAs []string, model string) error
	LoadIndexState(ctx context.Context) (models.IndexState, bool, error)
	IsBlobIndexed(ctx context.Context, blobSHA, model string) (bool, error)
}

// Store is the Postgres-backed ChunkStore.
type Store struct {
	pool *pgxpool.Pool
	lock *flock.Flock
}

// New connects to the database at url. lockPath is the path to the
// exclusive-writer lock file under .gitctx/db/.
func New(ctx context.Context, url, lockPath string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, gitctxerr.StorageError("invalid database url", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, gitctxerr.StorageError("failed to connect to store", err)
	}
	return &Store{pool: pool, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Lock acquires the exclusive writer lock used during indexing. Callers
// must call the returned release function when done.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	ok, err := s.lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, gitctxerr.StorageError("failed to acquire index lock", err)
	}
	if !ok {
		return nil, gitctxerr.StorageError("another gitctx index is already running", nil)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// RLock acquires a shared lock for concurrent readers (search). It is
// advisory: Postgres already serializes row writes, so this only protects
// the local .gitctx/db/ directory against a concurrent index run.
func (s *Store) RLock(ctx context.Context) (func(), error) {
	ok, err := s.lock.TryRLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, gitctxerr.StorageError("failed to acquire read lock", err)
	}
	if !ok {
		return nil, gitctxerr.StorageError("index is currently running, try again shortly", nil)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate creates the chunks/query_cache/index_state/indexed_blobs schema,
// sizing the vector columns to dim.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	_, err := s.pool.Exec(ctx, buildSchema(dim))
	if err != nil {
		return gitctxerr.StorageError("migration failed", err)
	}
	return nil
}

func buildSchema(dim int) string {
	if dim <= 0 {
		dim = 1536
	}
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
  id             TEXT PRIMARY KEY,
  blob_sha       TEXT NOT NULL,
  chunk_index    INT NOT NULL,
  total_chunks   INT NOT NULL DEFAULT 1,
  content        TEXT NOT NULL,
  start_line     INT NOT NULL,
  end_line       INT NOT NULL,
  language       TEXT,
  model          TEXT NOT NULL,
  vector         vector(%d) NOT NULL,
  commit_sha     TEXT NOT NULL,
  file_path      TEXT NOT NULL,
  author_name    TEXT,
  author_email   TEXT,
  commit_date    BIGINT,
  commit_message TEXT,
  is_head        BOOLEAN NOT NULL DEFAULT FALSE,
  is_merge       BOOLEAN NOT NULL DEFAULT FALSE,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS chunks_blob_sha_idx ON chunks (blob_sha);
CREATE INDEX IF NOT EXISTS chunks_is_head_idx ON chunks (is_head);

CREATE TABLE IF NOT EXISTS query_cache (
  cache_key  TEXT PRIMARY KEY,
  query_text TEXT NOT NULL,
  vector     vector(%d) NOT NULL,
  model      TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS index_state (
  id              INT PRIMARY KEY DEFAULT 0,
  last_commit     TEXT NOT NULL,
  embedding_model TEXT NOT NULL,
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  CHECK (id = 0)
);

CREATE TABLE IF NOT EXISTS indexed_blobs (
  blob_sha TEXT NOT NULL,
  model    TEXT NOT NULL,
  PRIMARY KEY (blob_sha, model)
);
`, dim, dim)
}

// Optimize builds the ivfflat vector index once the table holds enough rows
// for approximate search to pay off; below the threshold a flat scan is
// fast enough and an ivfflat index on a near-empty table is poorly tuned.
func (s *Store) Optimize(ctx context.Context) error {
	const threshold = 256
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if n < threshold {
		return nil
	}
	const q = `CREATE INDEX IF NOT EXISTS chunks_vector_idx
		ON chunks USING ivfflat (vector vector_cosine_ops) WITH (lists = 100);`
	_, err = s.pool.Exec(ctx, q)
	if err != nil {
		return gitctxerr.StorageError("optimize failed", err)
	}
	return nil
}

// Count returns the total number of chunk rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	if err != nil {
		return 0, gitctxerr.StorageError("count failed", err)
	}
	return n, nil
}

// GetStatistics summarizes the store's contents.
func (s *Store) GetStatistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics
	const q = `
		SELECT
			COUNT(*),
			COUNT(DISTINCT file_path),
			COUNT(DISTINCT blob_sha),
			COUNT(DISTINCT commit_sha),
			COALESCE(MAX(model), '')
		FROM chunks`
	err := s.pool.QueryRow(ctx, q).Scan(
		&stats.TotalChunks, &stats.TotalFiles, &stats.TotalBlobs, &stats.TotalCommits, &stats.Model,
	)
	if err != nil {
		return models.Statistics{}, gitctxerr.StorageError("statistics query failed", err)
	}
	return stats, nil
}
