package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/gitctx/gitctx/internal/gitctxerr"
	"github.com/gitctx/gitctx/internal/registry"
)

// VertexAIProvider calls the Gemini embedding API via google.golang.org/genai.
type VertexAIProvider struct {
	cfg    Config
	spec   registry.ModelSpec
	client *genai.Client
}

// NewVertexAIProvider builds a VertexAIProvider, authenticating either via
// API key or project+location ADC, mirroring the teacher's NewVertexAIClient.
func NewVertexAIProvider(ctx context.Context, cfg Config, spec registry.ModelSpec) (*VertexAIProvider, error) {
	if cfg.Location == "" && strings.TrimSpace(cfg.APIKey) == "" {
		cfg.Location = "us-central1"
	}

	cc := genai.ClientConfig{Backend: genai.BackendVertexAI}
	if strings.TrimSpace(cfg.APIKey) != "" {
		cc.APIKey = cfg.APIKey
	}
	if strings.TrimSpace(cfg.ProjectID) != "" {
		cc.Project = cfg.ProjectID
	}
	if strings.TrimSpace(cfg.Location) != "" {
		cc.Location = cfg.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}
	return &VertexAIProvider{cfg: cfg, spec: spec, client: client}, nil
}

func (p *VertexAIProvider) Model() string { return p.cfg.Model }

// EmbedBatch issues one EmbedContent call per text; the Gemini embedding API
// used here does not batch multiple documents in a single request the way
// OpenAI's does.
func (p *VertexAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	cfg := genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		res, err := p.client.Models.EmbedContent(ctx, p.cfg.Model, genai.Text(text), &cfg)
		if err != nil {
			return nil, fmt.Errorf("embedding failed: %w", err)
		}
		if res == nil || len(res.Embeddings) == 0 {
			return nil, errors.New("no embedding returned")
		}
		v := res.Embeddings[0].Values
		if len(v) != p.spec.Dimensions {
			return nil, gitctxerr.DimensionMismatchError(p.cfg.Model, p.spec.Dimensions, len(v))
		}
		out[i] = v
	}
	return out, nil
}
