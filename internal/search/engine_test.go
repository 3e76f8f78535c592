package search

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semidx/semidx/internal/chunk"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/embed"
	idxerrors "github.com/semidx/semidx/internal/errors"
	"github.com/semidx/semidx/internal/store"
)

const testDims = 128

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		MaxResults:         10,
		MinSimilarity:      0.05,
		FallbackSampleSize: 50,
	}
}

// indexFixture embeds and stores a few small files.
func indexFixture(t *testing.T, st store.IndexStore, embedder embed.Client) {
	t.Helper()
	ctx := context.Background()

	files := map[string]string{
		"internal/db/pool.go":    "package db\n\n// OpenPool opens the database connection pool for the given dsn.\nfunc OpenPool(dsn string) error { return nil }",
		"internal/auth/jwt.go":   "package auth\n\nfunc ValidateToken(token string) bool { return false }",
		"docs/guide.md":          "# Guide\n\nHow to configure the connection pool and tune timeouts.",
		"internal/render/svg.go": "package render\n\nfunc DrawChartLegend() {}",
	}
	for path, content := range files {
		vec, err := embedder.Embed(ctx, content)
		require.NoError(t, err)
		require.NoError(t, st.UpsertChunks(ctx, []store.StoredChunk{{
			Chunk: chunk.Chunk{
				ID:         "full:" + path,
				FilePath:   path,
				Content:    content,
				StartLine:  1,
				EndLine:    3,
				IsFullFile: true,
				Hash:       chunk.HashContent([]byte(content)),
				Metadata:   chunk.Metadata{Size: len(content), Significance: chunk.SignificanceMedium},
			},
			Vector: vec,
		}}))
	}
}

func newTestEngine(t *testing.T) (*Engine, store.IndexStore, embed.Client) {
	t.Helper()
	st, err := store.Open("", testDims, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	embedder := embed.NewStaticEmbedder(testDims)
	indexFixture(t, st, embedder)
	return NewEngine(st, embedder, testSearchConfig(), nil), st, embedder
}

func TestSearchSemanticPath(t *testing.T) {
	e, _, _ := newTestEngine(t)

	resp, err := e.Search(context.Background(), Query{Text: "database connection pool dsn", MaxResults: 2})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, SourceSemantic, resp.Results[0].Source)
	assert.Equal(t, "internal/db/pool.go", resp.Results[0].Chunk.FilePath)
	assert.Equal(t, resp.TotalFound, len(resp.Results))
	assert.GreaterOrEqual(t, resp.Breakdown.Primary, 1)
	assert.Equal(t, "database connection pool dsn", resp.Query)
	assert.Greater(t, resp.SearchTime, time.Duration(0))
	assert.Regexp(t, `^similarity \d+%$`, resp.Results[0].MatchReason)
}

func TestSearchFileTypeFilter(t *testing.T) {
	e, _, _ := newTestEngine(t)

	resp, err := e.Search(context.Background(), Query{
		Text:      "connection pool",
		FileTypes: []string{"md"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, "docs/guide.md", r.Chunk.FilePath)
	}
}

func TestSearchFallbackTopsUpUnderfilledPrimary(t *testing.T) {
	e, _, _ := newTestEngine(t)

	// A similarity floor this high starves the primary path, so the
	// lexical scan must fill in.
	resp, err := e.Search(context.Background(), Query{
		Text:          "jwt token auth",
		MinSimilarity: 0.99,
	})
	require.NoError(t, err)

	assert.True(t, resp.UsedFallback)
	assert.False(t, resp.PrimaryUnavailable, "an under-returning semantic path still ran")
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, SourceHeuristic, resp.Results[0].Source)
	assert.Equal(t, "internal/auth/jwt.go", resp.Results[0].Chunk.FilePath)
}

func TestSearchDegenerateQueryStaysWellFormed(t *testing.T) {
	e, _, _ := newTestEngine(t)

	// Pure punctuation embeds to the zero vector, which has no cosine
	// direction. The semantic path must stand down instead of emitting
	// NaN scores that ignore the floor.
	resp, err := e.Search(context.Background(), Query{
		Text:          "??? !!!",
		MinSimilarity: 0.99,
		MaxResults:    4,
	})
	require.NoError(t, err)

	for _, r := range resp.Results {
		assert.NotEqual(t, SourceSemantic, r.Source)
		assert.False(t, math.IsNaN(r.Score), "score must be a real number")
	}
	assert.Equal(t, 0, resp.Breakdown.Primary)
	assert.True(t, resp.UsedFallback)

	_, err = json.Marshal(resp)
	require.NoError(t, err, "response must stay JSON-encodable")
}

// floorRecordingStore captures the similarity floor passed down.
type floorRecordingStore struct {
	store.IndexStore
	lastMin float64
}

func (f *floorRecordingStore) SimilaritySearch(ctx context.Context, v []float32, k int, min float64, fileTypes []string) ([]store.SearchRow, error) {
	f.lastMin = min
	return f.IndexStore.SimilaritySearch(ctx, v, k, min, fileTypes)
}

func TestSearchMinSimilarityDefaultsAndSentinel(t *testing.T) {
	st, err := store.Open("", testDims, nil)
	require.NoError(t, err)
	defer st.Close()

	embedder := embed.NewStaticEmbedder(testDims)
	indexFixture(t, st, embedder)
	rec := &floorRecordingStore{IndexStore: st}
	e := NewEngine(rec, embedder, testSearchConfig(), nil)
	ctx := context.Background()

	_, err = e.Search(ctx, Query{Text: "connection pool"})
	require.NoError(t, err)
	assert.Equal(t, 0.05, rec.lastMin, "zero floor takes the configured default")

	_, err = e.Search(ctx, Query{Text: "connection pool", MinSimilarity: 0.42})
	require.NoError(t, err)
	assert.Equal(t, 0.42, rec.lastMin)

	_, err = e.Search(ctx, Query{Text: "connection pool", MinSimilarity: -1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.lastMin, "negative floor requests an explicit zero")
}

func TestSearchRankingDescends(t *testing.T) {
	e, _, _ := newTestEngine(t)

	resp, err := e.Search(context.Background(), Query{Text: "connection pool"})
	require.NoError(t, err)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.Search(context.Background(), Query{})
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeInvalidInput, idxerrors.GetCode(err))
}

func TestSearchEmptyIndexUsesFallback(t *testing.T) {
	st, err := store.Open("", testDims, nil)
	require.NoError(t, err)
	defer st.Close()

	e := NewEngine(st, embed.NewStaticEmbedder(testDims), testSearchConfig(), nil)
	resp, err := e.Search(context.Background(), Query{Text: "anything at all"})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.TotalFound)
	assert.Empty(t, resp.Results)
	assert.True(t, resp.UsedFallback)
}

// brokenEmbedder fails every call.
type brokenEmbedder struct{ *embed.StaticEmbedder }

func (b *brokenEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, idxerrors.EmbeddingError("service down", nil)
}

func TestSearchFallsBackWhenEmbeddingFails(t *testing.T) {
	st, err := store.Open("", testDims, nil)
	require.NoError(t, err)
	defer st.Close()

	good := embed.NewStaticEmbedder(testDims)
	indexFixture(t, st, good)

	e := NewEngine(st, &brokenEmbedder{StaticEmbedder: good}, testSearchConfig(), nil)
	resp, err := e.Search(context.Background(), Query{Text: "jwt token auth"})
	require.NoError(t, err, "embedding failure must not surface")

	assert.True(t, resp.UsedFallback)
	assert.True(t, resp.PrimaryUnavailable)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, SourceHeuristic, resp.Results[0].Source)
	assert.Equal(t, heuristicReason, resp.Results[0].MatchReason)
	assert.Equal(t, "internal/auth/jwt.go", resp.Results[0].Chunk.FilePath)
	assert.Equal(t, resp.Breakdown.Fallback, resp.TotalFound)
}

// downStore simulates an unreachable store.
type downStore struct{ store.IndexStore }

func (d *downStore) SimilaritySearch(ctx context.Context, v []float32, k int, min float64, fileTypes []string) ([]store.SearchRow, error) {
	return nil, idxerrors.StoreUnreachable("database file missing", nil)
}

func (d *downStore) FullFileChunks(ctx context.Context, limit int) ([]chunk.Chunk, error) {
	return nil, idxerrors.StoreUnreachable("database file missing", nil)
}

func TestSearchStoreUnreachableSurfaces(t *testing.T) {
	st, err := store.Open("", testDims, nil)
	require.NoError(t, err)
	defer st.Close()

	e := NewEngine(&downStore{IndexStore: st}, embed.NewStaticEmbedder(testDims), testSearchConfig(), nil)
	_, err = e.Search(context.Background(), Query{Text: "anything"})
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeStoreUnreachable, idxerrors.GetCode(err))
}

func TestSearchMaxResultsHonored(t *testing.T) {
	st, err := store.Open("", testDims, nil)
	require.NoError(t, err)
	defer st.Close()

	embedder := embed.NewStaticEmbedder(testDims)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		content := fmt.Sprintf("package p%d\n\nfunc HandleRequest%d() {}", i, i)
		vec, err := embedder.Embed(ctx, content)
		require.NoError(t, err)
		require.NoError(t, st.UpsertChunks(ctx, []store.StoredChunk{{
			Chunk: chunk.Chunk{
				ID: fmt.Sprintf("c%d", i), FilePath: fmt.Sprintf("h%d.go", i),
				Content: content, StartLine: 1, EndLine: 3, IsFullFile: true,
				Hash:     chunk.HashContent([]byte(content)),
				Metadata: chunk.Metadata{Significance: chunk.SignificanceLow},
			},
			Vector: vec,
		}}))
	}

	e := NewEngine(st, embedder, testSearchConfig(), nil)
	resp, err := e.Search(ctx, Query{Text: "handle request", MaxResults: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 3)
}
