package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/semidx/semidx/internal/ui"
)

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <file>...",
		Short: "Remove files from the index",
		Long: `Remove all chunks for the given files from the index.

The files themselves are untouched; only their index entries go away.

Examples:
  semidx remove legacy/old_handler.go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), cmd, args)
		},
	}

	return cmd
}

func runRemove(ctx context.Context, cmd *cobra.Command, paths []string) error {
	a, err := openApp("")
	if err != nil {
		return err
	}
	defer a.close()

	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		rel = append(rel, normalizePath(a.root, p))
	}

	start := time.Now()
	result, err := a.updater.RemoveFiles(ctx, rel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderer := ui.NewSummaryRenderer(out, noColor || !ui.UseColor(out))
	renderer.Render(summaryFrom(result, time.Since(start)))
	return nil
}
