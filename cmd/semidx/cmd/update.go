package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/semidx/semidx/internal/ui"
)

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <file>...",
		Short: "Re-index specific files",
		Long: `Re-index the given files without walking the whole project.

Paths are relative to the project root. Files whose content is
unchanged are skipped; files that no longer exist have their chunks
removed.

Examples:
  semidx update internal/server/handler.go
  semidx update docs/*.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), cmd, args)
		},
	}

	return cmd
}

func runUpdate(ctx context.Context, cmd *cobra.Command, paths []string) error {
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
	result, err := a.updater.UpdateFiles(ctx, rel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderer := ui.NewSummaryRenderer(out, noColor || !ui.UseColor(out))
	renderer.Render(summaryFrom(result, time.Since(start)))
	return nil
}

// normalizePath converts a possibly-absolute path to slash-separated
// form relative to the project root.
func normalizePath(root, p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(p))
}
