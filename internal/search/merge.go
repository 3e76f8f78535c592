package search

import "sort"

// mergeResults combines primary and fallback hits. A chunk surfaced by
// both paths keeps its primary entry; ordering is score descending
// with significance breaking ties.
func mergeResults(primary, fallback []Result, limit int) []Result {
	merged := make([]Result, 0, len(primary)+len(fallback))
	seen := make(map[string]bool, len(primary))

	for _, r := range primary {
		if seen[r.Chunk.ID] {
			continue
		}
		seen[r.Chunk.ID] = true
		merged = append(merged, r)
	}
	for _, r := range fallback {
		if seen[r.Chunk.ID] {
			continue
		}
		seen[r.Chunk.ID] = true
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Chunk.Metadata.Significance.Rank() > merged[j].Chunk.Metadata.Significance.Rank()
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
