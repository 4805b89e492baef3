// Package models defines the data types shared across the indexing and
// search pipeline: blob locations within the commit graph, chunked code,
// embeddings, and the rows persisted to the vector store.
package models

// BlobLocation is one place a blob's content appears in the commit graph: a
// (commit, path) pair plus the commit metadata needed for search results and
// HEAD filtering.
type BlobLocation struct {
	CommitSHA     string `json:"commit_sha"`
	FilePath      string `json:"file_path"`
	AuthorName    string `json:"author_name"`
	AuthorEmail   string `json:"author_email"`
	CommitDate    int64  `json:"commit_date"` // unix seconds, committer time
	CommitMessage string `json:"commit_message"`
	IsHead        bool   `json:"is_head"`
	IsMerge       bool   `json:"is_merge"`
}

// BlobRecord is a unique blob discovered by the commit walker, with every
// location it was found at. Locations are ordered HEAD first, then by
// CommitDate descending.
type BlobRecord struct {
	BlobSHA   string         `json:"blob_sha"`
	Content   []byte         `json:"-"`
	Locations []BlobLocation `json:"locations"`
}

// CodeChunk is a token-bounded slice of a blob's content.
type CodeChunk struct {
	BlobSHA     string `json:"blob_sha"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Content     string `json:"content"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	Language    string `json:"language"`
	TokenCount  int    `json:"token_count"`
}

// Embedding is the vector produced for a CodeChunk, plus cost accounting.
type Embedding struct {
	BlobSHA       string    `json:"blob_sha"`
	ChunkIndex    int       `json:"chunk_index"`
	Vector        []float32 `json:"vector"`
	Model         string    `json:"model"`
	TokenCount    int       `json:"token_count"`
	APITokenCount int       `json:"api_token_count,omitempty"`
	CostUSD       float64   `json:"cost_usd"`
}

// ChunkRecord is a single denormalized row of the vector store: one
// (chunk, location) pair. Search results are ChunkRecords.
type ChunkRecord struct {
	ID         string       `json:"id"`
	BlobSHA    string       `json:"blob_sha"`
	ChunkIndex int          `json:"chunk_index"`
	Content    string       `json:"content"`
	StartLine  int          `json:"start_line"`
	EndLine    int          `json:"end_line"`
	Language   string       `json:"language"`
	Model      string       `json:"model"`
	Vector     []float32    `json:"-"`
	Location   BlobLocation `json:"location"`
	Distance   float64      `json:"distance"`
}

// IndexState is the singleton record of the last completed index run.
type IndexState struct {
	LastCommit      string   `json:"last_commit"`
	IndexedBlobSHAs []string `json:"indexed_blob_shas"`
	EmbeddingModel  string   `json:"embedding_model"`
	Timestamp       int64    `json:"timestamp"`
}

// QueryCacheEntry caches an embedded query so repeated searches skip the
// provider round trip.
type QueryCacheEntry struct {
	CacheKey  string    `json:"cache_key"`
	QueryText string    `json:"query_text"`
	Vector    []float32 `json:"-"`
	Model     string    `json:"model"`
	UpdatedAt int64     `json:"updated_at"`
}

// Statistics summarizes the contents of the vector store.
type Statistics struct {
	TotalChunks  int    `json:"total_chunks"`
	TotalFiles   int    `json:"total_files"`
	TotalBlobs   int    `json:"total_blobs"`
	TotalCommits int    `json:"total_commits"`
	Model        string `json:"model"`
}
