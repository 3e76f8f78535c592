// Package search answers queries against the index. Semantic
// similarity is the primary path; a lexical heuristic over stored
// full-file chunks covers the cases where embedding or the vector
// side cannot help. A query returns an empty response rather than an
// error for everything short of an unreachable store.
package search

import (
	"time"

	"github.com/semidx/semidx/internal/chunk"
)

// Source identifies which path produced a result.
type Source string

const (
	SourceSemantic  Source = "semantic"
	SourceHeuristic Source = "heuristic"
)

// Query is one search request. Zero values fall back to the engine's
// configured defaults.
type Query struct {
	Text       string
	MaxResults int

	// MinSimilarity is the score floor for semantic results. Zero
	// means the configured default; a negative value requests an
	// explicit floor of zero.
	MinSimilarity float64

	// FileTypes restricts results to these extensions (e.g. "go", ".md").
	FileTypes []string
}

// Result is one ranked hit.
type Result struct {
	Chunk  chunk.Chunk
	Score  float64
	Source Source

	// MatchReason is a short human-readable explanation, either a
	// similarity percentage or a path/term match note.
	MatchReason string
}

// Breakdown counts results by origin and granularity.
type Breakdown struct {
	Primary  int `json:"primary"`
	Fallback int `json:"fallback"`
	FullFile int `json:"full_file"`
	SubFile  int `json:"sub_file"`
}

// Response is the outcome of one query.
type Response struct {
	Query        string
	Results      []Result
	TotalFound   int
	SearchTime   time.Duration
	UsedFallback bool

	// PrimaryUnavailable is set when the semantic path could not run
	// at all, as opposed to running and returning few or no matches.
	PrimaryUnavailable bool

	Breakdown Breakdown
}
