// Package search implements gitctx's query path: embed the query (or reuse
// a cached embedding), then ask the vector store for the nearest chunks.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gitctx/gitctx/internal/embedder"
	"github.com/gitctx/gitctx/internal/gitctxerr"
	"github.com/gitctx/gitctx/internal/store"
	"github.com/gitctx/gitctx/pkg/models"
)

// Service answers search queries against a ChunkStore, caching embedded
// queries the way the indexer caches embedded chunks.
type Service struct {
	Store    store.ChunkStore
	Provider embedder.Provider
}

// New returns a Service wrapping store and provider.
func New(store store.ChunkStore, provider embedder.Provider) *Service {
	return &Service{Store: store, Provider: provider}
}

// Options controls a single Search call.
type Options struct {
	Limit    int
	HeadOnly bool
}

// Search embeds query (or reuses its cached embedding) and returns the
// nearest chunks in the store. An empty or whitespace-only query fails fast
// with a ValidationError, before any embedding call is made.
func (s *Service) Search(ctx context.Context, query string, opt Options) ([]models.ChunkRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, gitctxerr.ValidationError("search query must not be empty")
	}

	limit := opt.Limit
	if limit <= 0 {
		limit = 10
	}

	model := s.Provider.Model()
	key := cacheKey(query, model)

	vec, hit, err := s.Store.GetQueryEmbedding(ctx, key)
	if err != nil {
		return nil, err
	}
	if !hit {
		vecs, err := s.Provider.EmbedBatch(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, gitctxerr.NetworkError("embedding provider returned unexpected result count", nil)
		}
		vec = vecs[0]
		if err := s.Store.CacheQueryEmbedding(ctx, key, query, vec, model); err != nil {
			log.Warn().Err(err).Msg("failed to cache query embedding")
		}
	}

	return s.Store.Search(ctx, vec, limit, opt.HeadOnly)
}

// cacheKey derives the query cache's primary key from the query text and
// embedding model, so the same text embedded under two different models
// never collides.
func cacheKey(query, model string) string {
	sum := sha256.Sum256([]byte(query + model))
	return hex.EncodeToString(sum[:])
}
