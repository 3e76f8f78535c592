package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo contains index health information for the stats command.
type StatusInfo struct {
	ProjectRoot string `json:"project_root"`
	Files       int    `json:"files"`
	Chunks      int    `json:"chunks"`
	FullFile    int    `json:"full_file_chunks"`
	SizeBytes   int64  `json:"size_bytes"`

	EmbedderModel  string `json:"embedder_model"`
	EmbedderDims   int    `json:"embedder_dimensions"`
	EmbedderStatus string `json:"embedder_status"` // "ready" or "offline"
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes the status as human-readable text.
func (r *StatusRenderer) Render(info StatusInfo) {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index: "+info.ProjectRoot))

	_, _ = fmt.Fprintf(r.out, "  Files:            %d\n", info.Files)
	_, _ = fmt.Fprintf(r.out, "  Chunks:           %d\n", info.Chunks)
	_, _ = fmt.Fprintf(r.out, "  Full-file chunks: %d\n", info.FullFile)
	_, _ = fmt.Fprintf(r.out, "  Size on disk:     %s\n", formatBytes(info.SizeBytes))
	_, _ = fmt.Fprintln(r.out)

	status := info.EmbedderStatus
	switch status {
	case "ready":
		status = r.styles.Success.Render(status)
	case "offline":
		status = r.styles.Warn.Render(status)
	}
	_, _ = fmt.Fprintf(r.out, "  Embedder: %s (%s, %d dims)\n",
		info.EmbedderModel, status, info.EmbedderDims)
}

// RenderJSON writes the status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// Summary contains the outcome of an index or update run.
type Summary struct {
	Indexed  int
	Removed  int
	Skipped  int
	Chunks   int
	Duration time.Duration
	Errors   []string
}

// SummaryRenderer displays an indexing run summary.
type SummaryRenderer struct {
	out    io.Writer
	styles Styles
}

// NewSummaryRenderer creates a summary renderer.
func NewSummaryRenderer(out io.Writer, noColor bool) *SummaryRenderer {
	return &SummaryRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes the run summary.
func (r *SummaryRenderer) Render(s Summary) {
	line := fmt.Sprintf("Indexed %d file(s), %d chunk(s) in %s",
		s.Indexed, s.Chunks, s.Duration.Round(10*time.Millisecond))
	_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Success.Render(line))

	if s.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, "  %d unchanged\n", s.Skipped)
	}
	if s.Removed > 0 {
		_, _ = fmt.Fprintf(r.out, "  %d removed\n", s.Removed)
	}
	for _, e := range s.Errors {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Warn.Render("warning: "+e))
	}
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
