package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Display index statistics: file and chunk counts, size on disk,
and embedder availability.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
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

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}

	status := "offline"
	if a.embedder.Available(ctx) {
		status = "ready"
	}

	info := ui.StatusInfo{
		ProjectRoot:    a.root,
		Files:          stats.Files,
		Chunks:         stats.Chunks,
		FullFile:       stats.FullFileChunks,
		SizeBytes:      stats.SizeBytes,
		EmbedderModel:  a.embedder.ModelName(),
		EmbedderDims:   a.embedder.Dimensions(),
		EmbedderStatus: status,
	}

	out := cmd.OutOrStdout()
	renderer := ui.NewStatusRenderer(out, noColor || !ui.UseColor(out))
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	renderer.Render(info)
	return nil
}
