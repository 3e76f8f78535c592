package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/semidx/semidx/internal/index"
	"github.com/semidx/semidx/internal/ui"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the project index",
		Long: `Index all discoverable files under the project root.

Already-indexed files whose content is unchanged are skipped, and
chunks for files that no longer exist are removed. Running index
repeatedly is safe and cheap.

Examples:
  semidx index
  semidx index ./services/api
  semidx index --offline`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) > 0 {
				root = args[0]
			}
			return runIndex(cmd.Context(), cmd, root)
		},
	}

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root string) error {
	a, err := openApp(root)
	if err != nil {
		return err
	}
	defer a.close()

	start := time.Now()
	result, err := a.updater.InitializeProject(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderer := ui.NewSummaryRenderer(out, noColor || !ui.UseColor(out))
	renderer.Render(summaryFrom(result, time.Since(start)))
	return nil
}

// summaryFrom converts an updater result into the display summary.
func summaryFrom(r *index.Result, elapsed time.Duration) ui.Summary {
	s := ui.Summary{
		Indexed:  r.FilesIndexed,
		Removed:  r.FilesRemoved,
		Skipped:  r.FilesSkipped,
		Chunks:   r.ChunksWritten,
		Duration: elapsed,
	}
	for _, e := range r.Errors {
		s.Errors = append(s.Errors, e.Error())
	}
	return s
}
