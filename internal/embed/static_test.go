package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder(0)
	defer e.Close()

	v1, err := e.Embed(context.Background(), "func ParseConfig(path string)")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "func ParseConfig(path string)")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, StaticDimensions)
}

func TestStaticEmbedderUnitLength(t *testing.T) {
	e := NewStaticEmbedder(128)
	defer e.Close()

	v, err := e.Embed(context.Background(), "authentication middleware handler")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedderEmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(64)
	defer e.Close()

	v, err := e.Embed(context.Background(), "   \n\t")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 64), v)
}

func TestStaticEmbedderSimilarTextsCloserThanUnrelated(t *testing.T) {
	e := NewStaticEmbedder(256)
	defer e.Close()

	ctx := context.Background()
	a, err := e.Embed(ctx, "open database connection pool")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "close database connection pool")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "render svg chart legend")
	require.NoError(t, err)

	assert.Greater(t, dot(a, b), dot(a, c))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestStaticEmbedderClosed(t *testing.T) {
	e := NewStaticEmbedder(64)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}
