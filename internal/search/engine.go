package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/embed"
	idxerrors "github.com/semidx/semidx/internal/errors"
	"github.com/semidx/semidx/internal/store"
)

// Engine runs queries: embed the text, search the vector index, and
// top up with the lexical fallback scan when the semantic path
// under-returns or cannot run at all. Only an unreachable or locked
// store surfaces as an error; every other failure degrades to
// fallback results.
type Engine struct {
	store    store.IndexStore
	embedder embed.Client
	cfg      config.SearchConfig
	logger   *slog.Logger
}

// NewEngine creates a query engine.
func NewEngine(st store.IndexStore, embedder embed.Client, cfg config.SearchConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, embedder: embedder, cfg: cfg, logger: logger}
}

// Search answers one query.
func (e *Engine) Search(ctx context.Context, q Query) (*Response, error) {
	if q.Text == "" {
		return nil, idxerrors.ValidationError("query text is empty", nil)
	}
	start := time.Now()
	if q.MaxResults <= 0 {
		q.MaxResults = e.cfg.MaxResults
	}
	switch {
	case q.MinSimilarity == 0:
		q.MinSimilarity = e.cfg.MinSimilarity
	case q.MinSimilarity < 0:
		q.MinSimilarity = 0
	}

	primaryUnavailable := false
	primary, err := e.primarySearch(ctx, q)
	if err != nil {
		if isStoreDown(err) {
			return nil, err
		}
		primaryUnavailable = true
		e.logger.Warn("semantic search unavailable, using fallback",
			"query", q.Text, "error", err)
	}

	usedFallback := false
	var fallback []Result
	if len(primary) < q.MaxResults {
		usedFallback = true
		fallback, err = e.fallbackSearch(ctx, q)
		if err != nil {
			if isStoreDown(err) {
				return nil, err
			}
			e.logger.Warn("fallback scan failed", "query", q.Text, "error", err)
			fallback = nil
		}
	}

	merged := mergeResults(primary, fallback, q.MaxResults)

	resp := &Response{
		Query:              q.Text,
		Results:            merged,
		TotalFound:         len(merged),
		SearchTime:         time.Since(start),
		UsedFallback:       usedFallback,
		PrimaryUnavailable: primaryUnavailable,
	}
	for _, r := range merged {
		if r.Source == SourceSemantic {
			resp.Breakdown.Primary++
		} else {
			resp.Breakdown.Fallback++
		}
		if r.Chunk.IsFullFile {
			resp.Breakdown.FullFile++
		} else {
			resp.Breakdown.SubFile++
		}
	}

	e.logger.Debug("search complete",
		"query", q.Text,
		"results", resp.TotalFound,
		"fallback", resp.UsedFallback)
	return resp, nil
}

// primarySearch embeds the query and runs vector similarity.
func (e *Engine) primarySearch(ctx context.Context, q Query) ([]Result, error) {
	vector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	if isZeroVector(vector) {
		// Degenerate text embeds to the zero vector, which has no
		// cosine direction. Similarity against it is undefined, so
		// the semantic path has nothing to rank.
		return nil, nil
	}

	rows, err := e.store.SimilaritySearch(ctx, vector, q.MaxResults, q.MinSimilarity, q.FileTypes)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Chunk:       row.Chunk,
			Score:       row.Similarity,
			Source:      SourceSemantic,
			MatchReason: fmt.Sprintf("similarity %.0f%%", row.Similarity*100),
		})
	}
	return results, nil
}

// fallbackSearch scores stored full-file chunks lexically.
func (e *Engine) fallbackSearch(ctx context.Context, q Query) ([]Result, error) {
	sample := e.cfg.FallbackSampleSize
	if sample <= 0 {
		sample = config.DefaultFallbackSampleSize
	}
	candidates, err := e.store.FullFileChunks(ctx, sample)
	if err != nil {
		return nil, err
	}
	return heuristicScan(q.Text, candidates, q.MaxResults, q.FileTypes), nil
}

// isZeroVector reports whether every component is zero.
func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// isStoreDown reports whether err means the store itself cannot serve.
func isStoreDown(err error) bool {
	switch idxerrors.GetCode(err) {
	case idxerrors.ErrCodeStoreUnreachable, idxerrors.ErrCodeStoreLocked:
		return true
	}
	return false
}
