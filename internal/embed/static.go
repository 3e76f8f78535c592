package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// StaticEmbedder produces deterministic hash-projection vectors with no
// network or model. Semantic quality is limited to lexical overlap,
// which is enough for offline mode and for tests.
type StaticEmbedder struct {
	dimensions int

	mu     sync.RWMutex
	closed bool
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// keywordStopWords are language keywords filtered out before hashing so
// vectors reflect identifiers and prose, not syntax.
var keywordStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder creates a static embedder producing vectors of the
// given dimension, or StaticDimensions when dimensions is zero.
func NewStaticEmbedder(dimensions int) *StaticEmbedder {
	if dimensions <= 0 {
		dimensions = StaticDimensions
	}
	return &StaticEmbedder{dimensions: dimensions}
}

// Embed generates a unit-length vector for one text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("static embedder is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if isDegenerate(text) {
		return make([]float32, e.dimensions), nil
	}
	return normalizeVector(e.generateVector(text)), nil
}

// EmbedBatch generates vectors for texts in order.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed batch is empty")
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// generateVector accumulates token and trigram hashes into buckets.
// Tokens carry most of the weight; trigrams add tolerance for partial
// identifier matches.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dimensions)

	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, token := range tokens {
		if keywordStopWords[token] {
			continue
		}
		vector[hashToIndex(token, e.dimensions)] += tokenWeight

		if len(token) >= ngramSize {
			for i := 0; i+ngramSize <= len(token); i++ {
				gram := token[i : i+ngramSize]
				vector[hashToIndex(gram, e.dimensions)] += ngramWeight
			}
		}
	}
	return vector
}

func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}

// Dimensions returns the configured vector length.
func (e *StaticEmbedder) Dimensions() int { return e.dimensions }

// ModelName identifies the hash-projection scheme.
func (e *StaticEmbedder) ModelName() string { return "static-hash" }

// Available always reports true; there is no external service.
func (e *StaticEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder unusable.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
