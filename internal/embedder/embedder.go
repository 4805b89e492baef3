package embedder

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gitctx/gitctx/internal/registry"
	"github.com/gitctx/gitctx/pkg/models"
)

// Embedder batches CodeChunks and calls a Provider to embed them, bounding
// the number of in-flight batches the way the teacher's indexer bounds its
// file-processing workers.
type Embedder struct {
	Provider Provider
	Spec     registry.ModelSpec

	// BatchSize caps the number of chunks sent in one provider call.
	BatchSize int
	// Concurrency caps the number of in-flight batches.
	Concurrency int
}

// New returns an Embedder for provider, with gitctx's default batch size
// (100 chunks) and concurrency ceiling (8 in-flight batches, capped by
// available CPUs the same way the teacher's indexer caps its worker count).
func New(provider Provider, spec registry.ModelSpec) *Embedder {
	concurrency := runtime.NumCPU()
	if concurrency > 8 {
		concurrency = 8
	}
	return &Embedder{
		Provider:    provider,
		Spec:        spec,
		BatchSize:   100,
		Concurrency: concurrency,
	}
}

type batchResult struct {
	index  int
	embeds []models.Embedding
	err    error
}

// EmbedChunks embeds all chunks, preserving order in the returned slice. If
// any batch fails, it returns the first batch error and no embeddings, so the
// indexer skips the whole blob instead of storing part of it.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []models.CodeChunk) ([]models.Embedding, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	var batches [][]models.CodeChunk
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[i:end])
	}

	concurrency := e.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	resultsChan := make(chan batchResult, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, batch []models.CodeChunk) {
			defer wg.Done()
			defer func() { <-sem }()

			texts := make([]string, len(batch))
			for j, c := range batch {
				texts[j] = c.Content
			}

			vecs, err := e.Provider.EmbedBatch(ctx, texts)
			if err != nil {
				resultsChan <- batchResult{index: idx, err: err}
				return
			}

			embeds := make([]models.Embedding, len(batch))
			for j, c := range batch {
				embeds[j] = models.Embedding{
					BlobSHA:    c.BlobSHA,
					ChunkIndex: c.ChunkIndex,
					Vector:     vecs[j],
					Model:      e.Provider.Model(),
					TokenCount: c.TokenCount,
					CostUSD:    registry.EstimateCost(e.Spec, c.TokenCount),
				}
			}
			resultsChan <- batchResult{index: idx, embeds: embeds}
		}(i, batch)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	ordered := make([][]models.Embedding, len(batches))
	var firstErr error
	for res := range resultsChan {
		if res.err != nil {
			log.Warn().Err(res.err).Int("batch", res.index).Msg("embedding batch failed")
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		ordered[res.index] = res.embeds
	}
	if firstErr != nil {
		return nil, firstErr
	}

	var out []models.Embedding
	for _, b := range ordered {
		out = append(out, b...)
	}
	return out, nil
}
