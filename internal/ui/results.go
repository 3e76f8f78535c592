package ui

import (
	"fmt"
	"io"
	"strings"
)

// snippetLines is the number of content lines shown per result.
const snippetLines = 4

// SearchHit is one result row prepared for display.
type SearchHit struct {
	Path        string  `json:"path"`
	StartLine   int     `json:"start_line"`
	EndLine     int     `json:"end_line"`
	Score       float64 `json:"score"`
	Source      string  `json:"source"`
	MatchReason string  `json:"match_reason,omitempty"`
	Heading     string  `json:"heading,omitempty"`
	Snippet     string  `json:"snippet,omitempty"`
}

// SearchView is a full search response prepared for display.
type SearchView struct {
	Query        string      `json:"query"`
	Hits         []SearchHit `json:"results"`
	TotalFound   int         `json:"total_found"`
	SearchTimeMs int64       `json:"search_time_ms"`
	UsedFallback bool        `json:"used_fallback"`

	// PrimaryUnavailable means the semantic path could not run and
	// every hit came from the keyword fallback.
	PrimaryUnavailable bool `json:"primary_unavailable,omitempty"`
}

// ResultsRenderer formats search results for the terminal.
type ResultsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultsRenderer creates a results renderer.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes the search view as human-readable text.
func (r *ResultsRenderer) Render(view SearchView) {
	if len(view.Hits) == 0 {
		_, _ = fmt.Fprintf(r.out, "No results for %q\n", view.Query)
		return
	}

	header := fmt.Sprintf("%d result(s) for %q", view.TotalFound, view.Query)
	_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Header.Render(header))
	if view.PrimaryUnavailable {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Warn.Render("semantic search unavailable, showing keyword matches"))
	}
	_, _ = fmt.Fprintln(r.out)

	for i, hit := range view.Hits {
		location := fmt.Sprintf("%s:%d-%d", hit.Path, hit.StartLine, hit.EndLine)
		score := fmt.Sprintf("(%.3f)", hit.Score)

		line := fmt.Sprintf("%2d. %s %s", i+1, r.styles.Path.Render(location), r.styles.Score.Render(score))
		if hit.MatchReason != "" {
			line += " " + r.styles.Label.Render(hit.MatchReason)
		}
		_, _ = fmt.Fprintln(r.out, line)

		if hit.Heading != "" {
			_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Label.Render(hit.Heading))
		}
		for _, sl := range snippet(hit.Snippet) {
			_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Dim.Render(sl))
		}
		_, _ = fmt.Fprintln(r.out)
	}
}

// snippet trims content down to its first few non-blank lines.
func snippet(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimRight(line, " \t")
		if len(lines) == 0 && strings.TrimSpace(trimmed) == "" {
			continue
		}
		lines = append(lines, truncate(trimmed, 120))
		if len(lines) == snippetLines {
			break
		}
	}
	return lines
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
