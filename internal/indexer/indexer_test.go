package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gitctx/gitctx/internal/chunker"
	"github.com/gitctx/gitctx/internal/embedder"
	"github.com/gitctx/gitctx/internal/registry"
	"github.com/gitctx/gitctx/pkg/models"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// MockWalker implements Walker for testing.
type MockWalker struct {
	Blobs          []models.BlobRecord
	WalkBlobsFunc  func(ctx context.Context, progress func(int)) ([]models.BlobRecord, error)
	HeadCommitFunc func() string
}

func (m *MockWalker) WalkBlobs(ctx context.Context, progress func(int)) ([]models.BlobRecord, error) {
	if m.WalkBlobsFunc != nil {
		return m.WalkBlobsFunc(ctx, progress)
	}
	return m.Blobs, nil
}

func (m *MockWalker) HeadCommit() string {
	if m.HeadCommitFunc != nil {
		return m.HeadCommitFunc()
	}
	return "deadbeef"
}

// MockProvider implements embedder.Provider for testing.
type MockProvider struct {
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (m *MockProvider) Model() string { return "text-embedding-3-small" }

// MockStore implements store.ChunkStore, tracking calls for assertions.
type MockStore struct {
	IndexedBlobs map[string]bool

	AddChunksBatchFunc   func(ctx context.Context, embeddings []models.Embedding, chunks []models.CodeChunk, locations map[string][]models.BlobLocation) error
	RefreshLocationsFunc func(ctx context.Context, blobSHA string, locations []models.BlobLocation) error

	AddedBatches    int
	RefreshedBlobs  []string
	SavedLastCommit string
	SavedBlobSHAs   []string
	SavedModel      string
	OptimizeCalled  bool
}

func (m *MockStore) Migrate(ctx context.Context, dim int) error { return nil }

func (m *MockStore) AddChunksBatch(ctx context.Context, embeddings []models.Embedding, chunks []models.CodeChunk, locations map[string][]models.BlobLocation) error {
	m.AddedBatches++
	if m.AddChunksBatchFunc != nil {
		return m.AddChunksBatchFunc(ctx, embeddings, chunks, locations)
	}
	return nil
}

func (m *MockStore) RefreshLocations(ctx context.Context, blobSHA string, locations []models.BlobLocation) error {
	m.RefreshedBlobs = append(m.RefreshedBlobs, blobSHA)
	if m.RefreshLocationsFunc != nil {
		return m.RefreshLocationsFunc(ctx, blobSHA, locations)
	}
	return nil
}

func (m *MockStore) Optimize(ctx context.Context) error {
	m.OptimizeCalled = true
	return nil
}

func (m *MockStore) Search(ctx context.Context, vec []float32, limit int, headOnly bool) ([]models.ChunkRecord, error) {
	return nil, nil
}

func (m *MockStore) Count(ctx context.Context) (int, error) { return 0, nil }

func (m *MockStore) GetStatistics(ctx context.Context) (models.Statistics, error) {
	return models.Statistics{}, nil
}

func (m *MockStore) GetQueryEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	return nil, false, nil
}

func (m *MockStore) CacheQueryEmbedding(ctx context.Context, key, text string, vec []float32, model string) error {
	return nil
}

func (m *MockStore) SaveIndexState(ctx context.Context, lastCommit string, blobSHAs []string, model string) error {
	m.SavedLastCommit, m.SavedBlobSHAs, m.SavedModel = lastCommit, blobSHAs, model
	return nil
}

func (m *MockStore) LoadIndexState(ctx context.Context) (models.IndexState, bool, error) {
	return models.IndexState{}, false, nil
}

func (m *MockStore) IsBlobIndexed(ctx context.Context, blobSHA, model string) (bool, error) {
	return m.IndexedBlobs[blobSHA], nil
}

func testBlob(sha, path, content string) models.BlobRecord {
	return models.BlobRecord{
		BlobSHA: sha,
		Content: []byte(content),
		Locations: []models.BlobLocation{
			{CommitSHA: "c1", FilePath: path, IsHead: true},
		},
	}
}

func newTestIndexer(st *MockStore, w *MockWalker) *Indexer {
	c := chunker.New(100)
	e := embedder.New(&MockProvider{}, registry.ModelSpec{Dimensions: 3})
	return New(st, w, c, e, "text-embedding-3-small")
}

func TestRun_EmbedsNewBlob(t *testing.T) {
	st := &MockStore{IndexedBlobs: map[string]bool{}}
	w := &MockWalker{Blobs: []models.BlobRecord{testBlob("sha1", "main.go", "package main\n\nfunc main() {}\n")}}
	ix := newTestIndexer(st, w)

	result, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BlobsWalked != 1 {
		t.Errorf("expected 1 blob walked, got %d", result.BlobsWalked)
	}
	if result.BlobsEmbedded != 1 {
		t.Errorf("expected 1 blob embedded, got %d", result.BlobsEmbedded)
	}
	if st.AddedBatches != 1 {
		t.Errorf("expected 1 store write, got %d", st.AddedBatches)
	}
	if !st.OptimizeCalled {
		t.Error("expected Optimize to be called")
	}
	if st.SavedModel != "text-embedding-3-small" {
		t.Errorf("expected saved model to match, got %q", st.SavedModel)
	}
}

func TestRun_AlreadyIndexedBlobOnlyRefreshesLocations(t *testing.T) {
	st := &MockStore{IndexedBlobs: map[string]bool{"sha1": true}}
	w := &MockWalker{Blobs: []models.BlobRecord{testBlob("sha1", "main.go", "package main\n")}}
	ix := newTestIndexer(st, w)

	result, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BlobsRefreshed != 1 {
		t.Errorf("expected 1 blob refreshed, got %d", result.BlobsRefreshed)
	}
	if result.BlobsEmbedded != 0 {
		t.Errorf("expected 0 blobs embedded, got %d", result.BlobsEmbedded)
	}
	if st.AddedBatches != 0 {
		t.Errorf("expected no store writes for an already-indexed blob, got %d", st.AddedBatches)
	}
	if len(st.RefreshedBlobs) != 1 || st.RefreshedBlobs[0] != "sha1" {
		t.Errorf("expected sha1 to be refreshed, got %v", st.RefreshedBlobs)
	}
}

func TestRun_EmptyBlobContentIsSkipped(t *testing.T) {
	st := &MockStore{IndexedBlobs: map[string]bool{}}
	w := &MockWalker{Blobs: []models.BlobRecord{testBlob("sha1", "empty.go", "")}}
	ix := newTestIndexer(st, w)

	result, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BlobsSkipped != 1 {
		t.Errorf("expected 1 blob skipped, got %d", result.BlobsSkipped)
	}
	if st.AddedBatches != 0 {
		t.Errorf("expected no store writes for empty content, got %d", st.AddedBatches)
	}
}

func TestRun_EmbeddingFailureSkipsBlobButContinues(t *testing.T) {
	st := &MockStore{IndexedBlobs: map[string]bool{}}
	w := &MockWalker{Blobs: []models.BlobRecord{
		testBlob("sha1", "a.go", "package a\n\nfunc A() {}\n"),
		testBlob("sha2", "b.go", "package b\n\nfunc B() {}\n"),
	}}
	c := chunker.New(100)
	failing := embedder.New(&MockProvider{
		EmbedBatchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("provider down")
		},
	}, registry.ModelSpec{Dimensions: 3})
	ix := New(st, w, c, failing, "text-embedding-3-small")

	result, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BlobsSkipped != 2 {
		t.Errorf("expected both blobs skipped after embedding failure, got %d", result.BlobsSkipped)
	}
	if st.AddedBatches != 0 {
		t.Errorf("expected no store writes, got %d", st.AddedBatches)
	}
}

func TestRun_WalkerErrorAborts(t *testing.T) {
	st := &MockStore{IndexedBlobs: map[string]bool{}}
	wantErr := errors.New("walk failed")
	w := &MockWalker{WalkBlobsFunc: func(ctx context.Context, progress func(int)) ([]models.BlobRecord, error) {
		return nil, wantErr
	}}
	ix := newTestIndexer(st, w)

	_, err := ix.Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected walker error to propagate, got %v", err)
	}
}

func TestRun_CancelledContextStopsProcessing(t *testing.T) {
	st := &MockStore{IndexedBlobs: map[string]bool{}}
	w := &MockWalker{Blobs: []models.BlobRecord{
		testBlob("sha1", "a.go", "package a\n"),
		testBlob("sha2", "b.go", "package b\n"),
	}}
	ix := newTestIndexer(st, w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_SavesAllWalkedSHAsRegardlessOfOutcome(t *testing.T) {
	st := &MockStore{IndexedBlobs: map[string]bool{"sha1": true}}
	w := &MockWalker{Blobs: []models.BlobRecord{
		testBlob("sha1", "a.go", "package a\n"),
		testBlob("sha2", "b.go", "package b\n\nfunc B() {}\n"),
	}}
	ix := newTestIndexer(st, w)

	if _, err := ix.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.SavedBlobSHAs) != 2 {
		t.Fatalf("expected both walked SHAs saved, got %v", st.SavedBlobSHAs)
	}
	if st.SavedLastCommit != "deadbeef" {
		t.Errorf("expected HeadCommit to be saved, got %q", st.SavedLastCommit)
	}
}
