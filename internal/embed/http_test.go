package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idxerrors "github.com/semidx/semidx/internal/errors"
)

// fakeService returns a test server that answers with deterministic
// vectors of the given dimension.
func fakeService(t *testing.T, dims int, requestCount *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount != nil {
			*requestCount++
		}
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vectors := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			v := make([]float32, dims)
			v[i%dims] = 1
			vectors[i] = v
		}
		json.NewEncoder(w).Encode(embedResponse{Vectors: vectors})
	}))
}

func TestHTTPEmbedderBatchOrder(t *testing.T) {
	srv := fakeService(t, 4, nil)
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", 4)
	vectors, err := e.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	for i, v := range vectors {
		require.Len(t, v, 4)
		assert.Equal(t, float32(1), v[i%4])
	}
}

func TestHTTPEmbedderDegenerateTextsGetZeroVectors(t *testing.T) {
	var requests int
	srv := fakeService(t, 4, &requests)
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", 4)
	vectors, err := e.EmbedBatch(context.Background(), []string{"real text", "   ", "\n\t"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	assert.Equal(t, make([]float32, 4), vectors[1])
	assert.Equal(t, make([]float32, 4), vectors[2])
	assert.NotEqual(t, make([]float32, 4), vectors[0])
	assert.Equal(t, 1, requests, "degenerate texts must not reach the service")
}

func TestHTTPEmbedderAllDegenerateSkipsService(t *testing.T) {
	var requests int
	srv := fakeService(t, 4, &requests)
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", 4)
	vectors, err := e.EmbedBatch(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, 0, requests)
}

func TestHTTPEmbedderDimensionMismatch(t *testing.T) {
	srv := fakeService(t, 8, nil)
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", 4)
	_, err := e.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeDimMismatch, idxerrors.GetCode(err))
}

func TestHTTPEmbedderBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", 4)
	_, err := e.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeEmbedBadResponse, idxerrors.GetCode(err))
}

func TestHTTPEmbedderUnreachableRetriesOnce(t *testing.T) {
	srv := fakeService(t, 4, nil)
	srv.Close() // connection refused from here on

	e := NewHTTPEmbedder(srv.URL, "test-model", 4)
	_, err := e.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeEmbedUnavailable, idxerrors.GetCode(err))
	assert.True(t, idxerrors.IsRetryable(err))
}

func TestHTTPEmbedderBatchLimits(t *testing.T) {
	e := NewHTTPEmbedder("http://localhost:0", "test-model", 4)

	_, err := e.EmbedBatch(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeInvalidInput, idxerrors.GetCode(err))

	oversized := make([]string, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = "text"
	}
	_, err = e.EmbedBatch(context.Background(), oversized)
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeInvalidInput, idxerrors.GetCode(err))
}
