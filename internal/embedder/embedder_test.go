package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gitctx/gitctx/internal/registry"
	"github.com/gitctx/gitctx/pkg/models"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// MockProvider implements Provider for testing.
type MockProvider struct {
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)
	ModelName      string
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

func (m *MockProvider) Model() string { return m.ModelName }

func TestEmbedChunks_Empty(t *testing.T) {
	e := New(&MockProvider{}, registry.ModelSpec{Dimensions: 3})
	got, err := e.EmbedChunks(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no embeddings, got %d", len(got))
	}
}

func TestEmbedChunks_PreservesOrderAcrossBatches(t *testing.T) {
	e := New(&MockProvider{
		EmbedBatchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{float32(len(texts[i])), 0, 0}
			}
			return out, nil
		},
	}, registry.ModelSpec{Dimensions: 3, UnitPriceUSD: 0.02})
	e.BatchSize = 2

	chunks := make([]models.CodeChunk, 10)
	for i := range chunks {
		chunks[i] = models.CodeChunk{BlobSHA: "abc", ChunkIndex: i, Content: "x", TokenCount: 1}
	}

	got, err := e.EmbedChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(chunks) {
		t.Fatalf("expected %d embeddings, got %d", len(chunks), len(got))
	}
	for i, emb := range got {
		if emb.ChunkIndex != i {
			t.Errorf("expected chunk index %d in order, got %d", i, emb.ChunkIndex)
		}
	}
}

func TestEmbedChunks_FailingBatchFailsWholeBlob(t *testing.T) {
	e := New(&MockProvider{
		EmbedBatchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("provider down")
		},
	}, registry.ModelSpec{Dimensions: 3})

	chunks := []models.CodeChunk{{BlobSHA: "abc", ChunkIndex: 0, Content: "x"}}
	got, err := e.EmbedChunks(context.Background(), chunks)
	if err == nil {
		t.Fatal("expected the failing batch's error to be returned")
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 embeddings from failed batch, got %d", len(got))
	}
}
