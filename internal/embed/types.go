// Package embed turns chunk text into dense vectors. The HTTP client
// talks to a local embedding service; the static embedder is a
// deterministic hash-projection fallback for offline use and tests.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize caps a single request to bound memory on the service side.
	MaxBatchSize = 256

	// DefaultBatchSize is the default texts-per-request count.
	DefaultBatchSize = 32

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultDimensions matches the default all-minilm-l6-v2 model.
	DefaultDimensions = 384

	// StaticDimensions is the dimension of hash-projection vectors when
	// no model dictates one.
	StaticDimensions = 256
)

// Client generates vector embeddings for text. Implementations must be
// safe for concurrent use and must return one vector per input text,
// all of Dimensions() length. Degenerate input (empty or whitespace)
// yields a zero vector rather than an error.
type Client interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length this client produces.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the backing service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length in place and returns it.
// The zero vector is returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / magnitude)
	}
	return v
}

// isDegenerate reports whether text has nothing to embed.
func isDegenerate(text string) bool {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
