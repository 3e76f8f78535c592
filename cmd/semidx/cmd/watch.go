package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semidx/semidx/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch the project and keep the index in sync",
		Long: `Watch the project tree for changes and re-index modified files.

Events are debounced so rapid save bursts become one batch. An
initial full index pass runs before watching starts. Stop with
Ctrl-C.

Examples:
  semidx watch
  semidx watch --debounce 2s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) > 0 {
				root = args[0]
			}
			return runWatch(cmd.Context(), cmd, root, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Delay before re-indexing after a change")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, root string, debounce time.Duration) error {
	a, err := openApp(root)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bring the index up to date before watching.
	start := time.Now()
	result, err := a.updater.InitializeProject(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Indexed %d file(s) in %s, watching %s\n",
		result.FilesIndexed, time.Since(start).Round(10*time.Millisecond), a.root)

	w := watch.New(a.root, a.updater, a.cfg.Discovery, debounce, a.logger)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
