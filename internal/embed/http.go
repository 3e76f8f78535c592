package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	idxerrors "github.com/semidx/semidx/internal/errors"
)

// HTTPEmbedder talks to an embedding service over HTTP. The service
// accepts POST {"model": ..., "texts": [...]} and responds with
// {"vectors": [[...], ...]}, one vector per text in order.
type HTTPEmbedder struct {
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
	retry      idxerrors.RetryConfig
}

// HTTPOption customizes an HTTPEmbedder.
type HTTPOption func(*HTTPEmbedder)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(e *HTTPEmbedder) {
		e.client.Timeout = d
	}
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(rc idxerrors.RetryConfig) HTTPOption {
	return func(e *HTTPEmbedder) {
		e.retry = rc
	}
}

// NewHTTPEmbedder creates a client for the embedding service at endpoint.
func NewHTTPEmbedder(endpoint, model string, dimensions int, opts ...HTTPOption) *HTTPEmbedder {
	e := &HTTPEmbedder{
		endpoint:   endpoint,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: DefaultTimeout},
		retry:      idxerrors.EmbedRetryConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Embed returns the embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in input order. Degenerate texts are never
// sent to the service; they come back as zero vectors so batch shape
// is preserved.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) < MinBatchSize {
		return nil, idxerrors.ValidationError("embed batch is empty", nil)
	}
	if len(texts) > MaxBatchSize {
		return nil, idxerrors.ValidationError(
			fmt.Sprintf("embed batch of %d exceeds maximum %d", len(texts), MaxBatchSize), nil)
	}

	results := make([][]float32, len(texts))
	var live []string
	var liveIdx []int
	for i, t := range texts {
		if isDegenerate(t) {
			results[i] = make([]float32, e.dimensions)
			continue
		}
		live = append(live, t)
		liveIdx = append(liveIdx, i)
	}
	if len(live) == 0 {
		return results, nil
	}

	vectors, err := idxerrors.RetryWithResult(ctx, e.retry, func() ([][]float32, error) {
		return e.request(ctx, live)
	})
	if err != nil {
		return nil, err
	}

	for j, v := range vectors {
		results[liveIdx[j]] = v
	}
	return results, nil
}

// request performs one POST to the embedding service.
func (e *HTTPEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Texts: texts})
	if err != nil {
		return nil, idxerrors.New(idxerrors.ErrCodeEmbedBadResponse, "encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, idxerrors.New(idxerrors.ErrCodeEmbedUnavailable, "build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, idxerrors.New(idxerrors.ErrCodeEmbedTimeout, "embed request canceled", ctx.Err())
		}
		return nil, idxerrors.EmbeddingError(
			fmt.Sprintf("embedding service at %s unreachable", e.endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, idxerrors.New(idxerrors.ErrCodeEmbedBadResponse,
			fmt.Sprintf("embedding service returned %d: %s", resp.StatusCode, snippet), nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, idxerrors.New(idxerrors.ErrCodeEmbedBadResponse, "decode embed response", err)
	}

	if len(parsed.Vectors) != len(texts) {
		return nil, idxerrors.New(idxerrors.ErrCodeEmbedBadResponse,
			fmt.Sprintf("expected %d vectors, got %d", len(texts), len(parsed.Vectors)), nil)
	}
	for i, v := range parsed.Vectors {
		if len(v) != e.dimensions {
			return nil, idxerrors.New(idxerrors.ErrCodeDimMismatch,
				fmt.Sprintf("vector %d has %d dimensions, expected %d", i, len(v), e.dimensions), nil)
		}
	}
	return parsed.Vectors, nil
}

// Dimensions returns the configured vector length.
func (e *HTTPEmbedder) Dimensions() int { return e.dimensions }

// ModelName returns the configured model identifier.
func (e *HTTPEmbedder) ModelName() string { return e.model }

// Available probes the service with a minimal request.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.request(probeCtx, []string{"ping"})
	return err == nil
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (e *HTTPEmbedder) Close() error { return nil }
