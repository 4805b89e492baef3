// Package registry holds the static table of supported embedding models:
// their provider, dimensionality, token limit, and per-token price.
package registry

import (
	"fmt"
	"strings"

	"github.com/gitctx/gitctx/internal/gitctxerr"
)

// ModelSpec describes one embedding model gitctx knows how to call.
type ModelSpec struct {
	Name          string
	Provider      string // "openai" or "vertexai"
	Dimensions    int
	MaxTokens     int
	UnitPriceUSD  float64 // USD per 1,000,000 tokens
}

// Models is the static registry, keyed by model name.
var Models = map[string]ModelSpec{
	"text-embedding-3-large": {
		Name:         "text-embedding-3-large",
		Provider:     "openai",
		Dimensions:   3072,
		MaxTokens:    8191,
		UnitPriceUSD: 0.13,
	},
	"text-embedding-3-small": {
		Name:         "text-embedding-3-small",
		Provider:     "openai",
		Dimensions:   1536,
		MaxTokens:    8191,
		UnitPriceUSD: 0.02,
	},
	"text-embedding-004": {
		Name:         "text-embedding-004",
		Provider:     "vertexai",
		Dimensions:   768,
		MaxTokens:    2048,
		UnitPriceUSD: 0.025,
	},
}

// Get looks up a model by name. The error message lists the supported
// models, mirroring gitctx's original get_model_spec ValueError text.
func Get(name string) (ModelSpec, error) {
	spec, ok := Models[name]
	if !ok {
		names := make([]string, 0, len(Models))
		for n := range Models {
			names = append(names, n)
		}
		return ModelSpec{}, fmt.Errorf("unknown model %q, supported models: %s", name, strings.Join(names, ", "))
	}
	return spec, nil
}

// RequireAPIKey returns a ConfigurationError with the same remediation text
// shape as gitctx's get_embedder factory when a provider's key is unset.
func RequireAPIKey(provider, envVar string) *gitctxerr.Error {
	return gitctxerr.ConfigurationError(
		fmt.Sprintf("%s API key not configured", provider),
		fmt.Sprintf("Set with: export %s=...", envVar),
	)
}

// EstimateCost computes cost_usd = tokens / 1,000,000 * unit_price, matching
// the linearity invariant: EstimateCost(a)+EstimateCost(b) == EstimateCost(a+b).
func EstimateCost(spec ModelSpec, tokens int) float64 {
	return float64(tokens) / 1_000_000 * spec.UnitPriceUSD
}
