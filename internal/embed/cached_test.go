package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingClient wraps the static embedder and counts inner calls.
type countingClient struct {
	*StaticEmbedder
	embedCalls int64
	batchTexts int64
}

func (c *countingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt64(&c.embedCalls, 1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt64(&c.batchTexts, int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedClientServesRepeatsFromCache(t *testing.T) {
	inner := &countingClient{StaticEmbedder: NewStaticEmbedder(64)}
	c := NewCachedClient(inner, 10)
	ctx := context.Background()

	v1, err := c.Embed(ctx, "query text")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "query text")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&inner.embedCalls))
	assert.Equal(t, 1, c.Len())
}

func TestCachedClientBatchOnlyEmbedsMisses(t *testing.T) {
	inner := &countingClient{StaticEmbedder: NewStaticEmbedder(64)}
	c := NewCachedClient(inner, 10)
	ctx := context.Background()

	_, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&inner.batchTexts))

	vectors, err := c.EmbedBatch(ctx, []string{"a", "d", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, int64(4), atomic.LoadInt64(&inner.batchTexts), "only the miss should be embedded")
}

func TestCachedClientEviction(t *testing.T) {
	inner := &countingClient{StaticEmbedder: NewStaticEmbedder(64)}
	c := NewCachedClient(inner, 2)
	ctx := context.Background()

	_, err := c.Embed(ctx, "one")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "two")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "three")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())

	// "one" was evicted, so embedding it again hits the inner client.
	_, err = c.Embed(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, int64(4), atomic.LoadInt64(&inner.embedCalls))
}
