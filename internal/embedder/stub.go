package embedder

import (
	"context"

	"github.com/gitctx/gitctx/internal/registry"
)

// StubProvider returns zero-valued vectors of the registry's declared
// dimensionality. It exists for tests that need the pipeline to run without
// a live provider.
type StubProvider struct {
	spec registry.ModelSpec
}

// NewStubProvider builds a StubProvider for spec.
func NewStubProvider(spec registry.ModelSpec) *StubProvider {
	return &StubProvider{spec: spec}
}

func (s *StubProvider) Model() string { return s.spec.Name }

func (s *StubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.spec.Dimensions)
	}
	return out, nil
}
