package embedder

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gitctx/gitctx/internal/gitctxerr"
	"github.com/gitctx/gitctx/internal/registry"
)

// OpenAIProvider calls the OpenAI embeddings endpoint, retrying transient
// failures with exponential backoff.
type OpenAIProvider struct {
	cfg  Config
	spec registry.ModelSpec
	http *http.Client
}

// NewOpenAIProvider builds an OpenAIProvider. Transport TLS verification can
// be disabled via GITCTX_SKIP_TLS_VERIFY, matching the teacher's corporate-
// proxy escape hatch.
func NewOpenAIProvider(cfg Config, spec registry.ModelSpec) *OpenAIProvider {
	transport := &http.Transport{}
	if skip, _ := strconv.ParseBool(os.Getenv("GITCTX_SKIP_TLS_VERIFY")); skip {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &OpenAIProvider{
		cfg:  cfg,
		spec: spec,
		http: &http.Client{Timeout: 30 * time.Second, Transport: transport},
	}
}

func (p *OpenAIProvider) Model() string { return p.cfg.Model }

// EmbedBatch sends all texts in one request and retries the whole batch on
// transient failure. Non-transient failures (auth, malformed request)
// return immediately.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	var retryAfter time.Duration

	op := func() error {
		retryAfter = 0
		vecs, retryable, wait, err := p.embedOnce(ctx, texts)
		if err != nil {
			if !retryable {
				return backoff.Permanent(err)
			}
			retryAfter = wait
			return err
		}
		result = vecs
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 1 * time.Second
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.25
	policy.MaxElapsedTime = 2 * time.Minute

	rab := &retryAfterBackOff{BackOff: policy, retryAfter: func() time.Duration { return retryAfter }}

	// 5 retries after the first try: at most 6 attempts per batch.
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(rab, 5), ctx))
	if err != nil {
		return nil, err
	}

	for _, v := range result {
		if len(v) != p.spec.Dimensions {
			return nil, gitctxerr.DimensionMismatchError(p.cfg.Model, p.spec.Dimensions, len(v))
		}
	}
	return result, nil
}

func (p *OpenAIProvider) embedOnce(ctx context.Context, texts []string) (vecs [][]float32, retryable bool, retryAfter time.Duration, err error) {
	payload := map[string]any{
		"input": texts,
		"model": p.cfg.Model,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.openai.com/v1/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, false, 0, err
	}
	p.setHeaders(req)

	attemptCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req = req.WithContext(attemptCtx)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, true, 0, gitctxerr.NetworkError("openai embeddings request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, true, wait, gitctxerr.RateLimitError("openai rate limited", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return nil, true, 0, gitctxerr.NetworkError("openai server error", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, 0, fmt.Errorf("openai embeddings returned status %d", resp.StatusCode)
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, 0, err
	}
	if len(out.Data) != len(texts) {
		return nil, false, 0, fmt.Errorf("openai returned %d embeddings for %d inputs", len(out.Data), len(texts))
	}

	ordered := make([][]float32, len(texts))
	for _, d := range out.Data {
		ordered[d.Index] = d.Embedding
	}
	return ordered, false, 0, nil
}

func (p *OpenAIProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if strings.HasPrefix(p.cfg.APIKey, "sk-proj-") && p.cfg.ProjectID != "" {
		req.Header.Set("OpenAI-Project", p.cfg.ProjectID)
	}
}

// parseRetryAfter interprets an HTTP Retry-After header as either a delta in
// seconds or an HTTP-date, returning zero if absent or unparseable.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// retryAfterBackOff wraps a backoff.BackOff, preferring a provider-supplied
// Retry-After duration over the exponential schedule when the most recent
// attempt reported one.
type retryAfterBackOff struct {
	backoff.BackOff
	retryAfter func() time.Duration
}

func (r *retryAfterBackOff) NextBackOff() time.Duration {
	if d := r.retryAfter(); d > 0 {
		return d
	}
	return r.BackOff.NextBackOff()
}
