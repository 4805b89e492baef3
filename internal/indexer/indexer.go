// Package indexer orchestrates a full index run: walk the commit graph,
// chunk and embed any blob not already indexed under the current model,
// write the results to the store, refresh HEAD markers for blobs that were
// already indexed, then persist the new index state.
package indexer

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gitctx/gitctx/internal/chunker"
	"github.com/gitctx/gitctx/internal/embedder"
	"github.com/gitctx/gitctx/internal/langdetect"
	"github.com/gitctx/gitctx/internal/store"
	"github.com/gitctx/gitctx/pkg/models"
)

// Walker is the narrow interface the indexer needs from the commit walker.
type Walker interface {
	WalkBlobs(ctx context.Context, progress func(int)) ([]models.BlobRecord, error)
	HeadCommit() string
}

// Indexer drives walker -> chunker -> embedder -> store for one repository.
type Indexer struct {
	Store    store.ChunkStore
	Walker   Walker
	Chunker  *chunker.Chunker
	Embedder *embedder.Embedder
	Model    string
}

// New builds an Indexer from its concrete dependencies.
func New(s store.ChunkStore, w Walker, c *chunker.Chunker, e *embedder.Embedder, model string) *Indexer {
	return &Indexer{Store: s, Walker: w, Chunker: c, Embedder: e, Model: model}
}

// Result summarizes a completed run.
type Result struct {
	RunID          string
	BlobsWalked    int
	BlobsEmbedded  int
	BlobsRefreshed int
	BlobsSkipped   int
	ChunksWritten  int
	TotalCostUSD   float64
}

// Run performs one full index: blobs already indexed under ix.Model only
// have their locations refreshed (HEAD markers flip both ways every run);
// new blobs are chunked, embedded, and written. A blob whose chunking or
// embedding fails is skipped; a failed store write ends the run with that
// error.
func (ix *Indexer) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Msg("starting index run")

	var result Result
	result.RunID = runID

	blobs, err := ix.Walker.WalkBlobs(ctx, func(n int) {
		log.Info().Str("run_id", runID).Int("commits_visited", n).Msg("walking commit graph")
	})
	if err != nil {
		return result, err
	}
	result.BlobsWalked = len(blobs)

	var allSHAs []string
	for _, blob := range blobs {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		allSHAs = append(allSHAs, blob.BlobSHA)

		indexed, err := ix.Store.IsBlobIndexed(ctx, blob.BlobSHA, ix.Model)
		if err != nil {
			log.Warn().Err(err).Str("blob", blob.BlobSHA).Msg("failed to check indexed state, re-embedding")
			indexed = false
		}

		if indexed {
			if err := ix.Store.RefreshLocations(ctx, blob.BlobSHA, blob.Locations); err != nil {
				log.Error().Err(err).Str("blob", blob.BlobSHA).Msg("failed to refresh locations")
				return result, err
			}
			result.BlobsRefreshed++
			continue
		}

		locationMap := map[string][]models.BlobLocation{blob.BlobSHA: blob.Locations}
		language := ""
		if len(blob.Locations) > 0 {
			language = langdetect.Detect(blob.Locations[0].FilePath)
		}

		chunks, err := ix.Chunker.ChunkFile(blob.BlobSHA, blob.Content, language)
		if err != nil {
			log.Warn().Err(err).Str("blob", blob.BlobSHA).Msg("chunking failed, skipping blob")
			result.BlobsSkipped++
			continue
		}
		if len(chunks) == 0 {
			result.BlobsSkipped++
			continue
		}

		embeddings, err := ix.Embedder.EmbedChunks(ctx, chunks)
		if err != nil {
			log.Warn().Err(err).Str("blob", blob.BlobSHA).Msg("embedding failed, skipping blob")
			result.BlobsSkipped++
			continue
		}
		if len(embeddings) == 0 {
			result.BlobsSkipped++
			continue
		}

		if err := ix.Store.AddChunksBatch(ctx, embeddings, chunks, locationMap); err != nil {
			log.Error().Err(err).Str("blob", blob.BlobSHA).Msg("store write failed")
			return result, err
		}

		result.BlobsEmbedded++
		result.ChunksWritten += len(embeddings)
		for _, e := range embeddings {
			result.TotalCostUSD += e.CostUSD
		}
	}

	if err := ix.Store.Optimize(ctx); err != nil {
		return result, err
	}

	if err := ix.Store.SaveIndexState(ctx, ix.Walker.HeadCommit(), allSHAs, ix.Model); err != nil {
		return result, err
	}

	log.Info().Str("run_id", runID).
		Int("embedded", result.BlobsEmbedded).
		Int("refreshed", result.BlobsRefreshed).
		Int("skipped", result.BlobsSkipped).
		Int("chunks", result.ChunksWritten).
		Float64("cost_usd", result.TotalCostUSD).
		Msg("index run complete")

	return result, nil
}
