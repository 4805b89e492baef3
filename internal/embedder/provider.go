// Package embedder turns CodeChunks into Embeddings by calling an external
// embedding provider in batches, with retry/backoff and dimension checking.
package embedder

import (
	"context"
	"errors"

	"github.com/gitctx/gitctx/internal/registry"
)

// Provider embeds a batch of texts, returning one vector per input in the
// same order. Implementations must not reorder results.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// ProviderName enumerates the providers gitctx ships.
type ProviderName string

const (
	ProviderOpenAI   ProviderName = "openai"
	ProviderVertexAI ProviderName = "vertexai"
	ProviderStub     ProviderName = "stub"
)

// Config configures a Provider construction.
type Config struct {
	Provider  ProviderName
	Model     string
	APIKey    string
	ProjectID string
	Location  string
}

// NewProvider constructs the Provider named by cfg.Provider, resolving its
// dimensionality and token limit from the model registry.
func NewProvider(cfg Config) (Provider, error) {
	spec, err := registry.Get(cfg.Model)
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, registry.RequireAPIKey("openai", "OPENAI_API_KEY")
		}
		return NewOpenAIProvider(cfg, spec), nil
	case ProviderVertexAI:
		return NewVertexAIProvider(context.Background(), cfg, spec)
	case ProviderStub:
		return NewStubProvider(spec), nil
	default:
		return nil, errors.New("unsupported embedding provider: " + string(cfg.Provider))
	}
}
