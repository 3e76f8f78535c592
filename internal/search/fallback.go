package search

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/semidx/semidx/internal/chunk"
)

// heuristicReason annotates fallback results so callers can tell a
// lexical hit apart from a similarity hit.
const heuristicReason = "path/term match"

// Heuristic scoring weights. Path matches dominate because a query
// term appearing in a file name is a far stronger signal than the same
// term buried in content.
const (
	pathTermWeight    = 2.0
	contentTermWeight = 0.1
	contentFreqCap    = 5
	fileTypeBonus     = 1.0
)

var queryTokenPattern = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// fileTypeHints maps query terms to path fragments that suggest the
// matching kind of file.
var fileTypeHints = map[string][]string{
	"test":   {"_test.", "test_", "/test", ".spec."},
	"config": {".yaml", ".yml", ".toml", ".json", "config"},
	"doc":    {".md", ".rst", "readme", "/docs/"},
	"docs":   {".md", ".rst", "readme", "/docs/"},
	"readme": {"readme"},
	"script": {".sh", ".bash", "/scripts/"},
}

// heuristicScan scores full-file chunks lexically against the query.
// Scores are squashed into [0, 1) so they merge with similarity scores
// without a strong lexical match drowning out semantic hits.
func heuristicScan(queryText string, candidates []chunk.Chunk, limit int, fileTypes []string) []Result {
	terms := queryTerms(queryText)
	if len(terms) == 0 || len(candidates) == 0 {
		return nil
	}

	var results []Result
	for _, ch := range candidates {
		if !matchesExtension(ch.FilePath, fileTypes) {
			continue
		}
		score := scoreChunk(terms, ch)
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			Chunk:       ch,
			Score:       score / (1 + score),
			Source:      SourceHeuristic,
			MatchReason: heuristicReason,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Metadata.Significance.Rank() > results[j].Chunk.Metadata.Significance.Rank()
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// queryTerms lowercases and tokenizes the query, dropping one-character
// noise.
func queryTerms(text string) []string {
	tokens := queryTokenPattern.FindAllString(strings.ToLower(text), -1)
	terms := make([]string, 0, len(tokens))
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if len(tok) < 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// matchesExtension reports whether path has one of the extensions.
// An empty filter matches everything.
func matchesExtension(path string, fileTypes []string) bool {
	if len(fileTypes) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, ft := range fileTypes {
		if ext == strings.ToLower(strings.TrimPrefix(ft, ".")) {
			return true
		}
	}
	return false
}

func scoreChunk(terms []string, ch chunk.Chunk) float64 {
	lowerPath := strings.ToLower(ch.FilePath)
	lowerContent := strings.ToLower(ch.Content)

	var score float64
	for _, term := range terms {
		if strings.Contains(lowerPath, term) {
			score += pathTermWeight
		}

		freq := strings.Count(lowerContent, term)
		if freq > contentFreqCap {
			freq = contentFreqCap
		}
		score += float64(freq) * contentTermWeight

		for _, hint := range fileTypeHints[term] {
			if strings.Contains(lowerPath, hint) {
				score += fileTypeBonus
				break
			}
		}
	}
	return score
}
