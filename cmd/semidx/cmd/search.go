package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/search"
	"github.com/semidx/semidx/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit         int
	minSimilarity float64
	fileTypes     []string
	format        string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed project",
		Long: `Search the index with a natural-language query.

Semantic similarity is the primary ranking; when the embedding
service is unavailable or yields nothing, a keyword heuristic over
full-file chunks answers instead.

Examples:
  semidx search "authentication middleware"
  semidx search "retry with backoff" --limit 5
  semidx search "setup instructions" --type md
  semidx search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 = config default)")
	cmd.Flags().Float64Var(&opts.minSimilarity, "min-similarity", 0, "Similarity floor, 0-1 (0 = config default)")
	cmd.Flags().StringSliceVarP(&opts.fileTypes, "type", "t", nil, "Restrict results to file extensions (repeatable, e.g. --type go)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	root, err := resolveRoot("")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if !indexExists(cfg) {
		return fmt.Errorf("no index found in %s\nRun 'semidx index' to create one", root)
	}

	a, err := openApp("")
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.engine.Search(ctx, search.Query{
		Text:          query,
		MaxResults:    opts.limit,
		MinSimilarity: opts.minSimilarity,
		FileTypes:     opts.fileTypes,
	})
	if err != nil {
		return err
	}

	view := searchView(query, resp)
	out := cmd.OutOrStdout()

	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	ui.NewResultsRenderer(out, noColor || !ui.UseColor(out)).Render(view)
	return nil
}

// searchView converts an engine response into the display view.
func searchView(query string, resp *search.Response) ui.SearchView {
	view := ui.SearchView{
		Query:              query,
		TotalFound:         resp.TotalFound,
		SearchTimeMs:       resp.SearchTime.Milliseconds(),
		UsedFallback:       resp.UsedFallback,
		PrimaryUnavailable: resp.PrimaryUnavailable,
	}
	for _, r := range resp.Results {
		view.Hits = append(view.Hits, ui.SearchHit{
			Path:        r.Chunk.FilePath,
			StartLine:   r.Chunk.StartLine,
			EndLine:     r.Chunk.EndLine,
			Score:       r.Score,
			Source:      string(r.Source),
			MatchReason: r.MatchReason,
			Heading:     r.Chunk.Metadata.HeadingPath,
			Snippet:     r.Chunk.Content,
		})
	}
	return view
}
