// Package cmd provides the CLI commands for semidx.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/semidx/semidx/internal/chunk"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/embed"
	"github.com/semidx/semidx/internal/index"
	"github.com/semidx/semidx/internal/logging"
	"github.com/semidx/semidx/internal/search"
	"github.com/semidx/semidx/internal/store"
	"github.com/semidx/semidx/pkg/version"
)

// Persistent flags shared by all commands.
var (
	debugMode bool
	noColor   bool
	offline   bool
)

// NewRootCmd creates the root command for the semidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semidx",
		Short: "Semantic code index for local projects",
		Long: `semidx builds a local semantic index over a project's source
files and documents, and answers natural-language queries against it.

Indexing is incremental: unchanged files are skipped by content hash,
and 'semidx watch' keeps the index in sync as files change.

Typical usage:
  semidx index          # index the current project
  semidx search "connection pool setup"
  semidx watch          # keep the index fresh`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("semidx version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.semidx/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding service)")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// app bundles the wired pipeline components for one command invocation.
type app struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.SQLiteStore
	embedder embed.Client
	updater  *index.Updater
	engine   *search.Engine

	cleanups []func()
}

// openApp loads configuration and wires the store, embedder, updater,
// and search engine for the project rooted at rootArg (empty means the
// working directory). Call close when done.
func openApp(rootArg string) (*app, error) {
	root, err := resolveRoot(rootArg)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if offline {
		cfg.Embedding.Offline = true
	}

	a := &app{root: root, cfg: cfg}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if debugMode {
		logCfg.Level = "debug"
	}
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	logCfg.WriteToStderr = false
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Fall back to stderr-only logging rather than failing the command.
		logger, logCleanup, _ = logging.Setup(logging.Config{Level: logCfg.Level})
	}
	a.logger = logger
	a.cleanups = append(a.cleanups, logCleanup)
	slog.SetDefault(logger)

	a.embedder = embed.New(cfg.Embedding, logger)
	a.cleanups = append(a.cleanups, func() { _ = a.embedder.Close() })

	st, err := store.Open(cfg.Store.DataDir, a.embedder.Dimensions(), logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = st
	a.cleanups = append(a.cleanups, func() { _ = st.Close() })

	chunker := chunk.NewChunker(chunkOptions(cfg.Chunking), logger)
	a.updater = index.NewUpdater(root, chunker, a.embedder, st, cfg, logger)
	a.engine = search.NewEngine(st, a.embedder, cfg.Search, logger)

	return a, nil
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// resolveRoot turns an optional path argument into an absolute project root.
func resolveRoot(rootArg string) (string, error) {
	if rootArg == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(rootArg)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	return abs, nil
}

// chunkOptions maps chunking config onto chunker options.
func chunkOptions(c config.ChunkingConfig) chunk.Options {
	opts := chunk.DefaultOptions()
	if c.WindowSize > 0 {
		opts.WindowSize = c.WindowSize
	}
	if c.WindowOverlap > 0 {
		opts.WindowOverlap = c.WindowOverlap
	}
	if c.MinChunkChars > 0 {
		opts.MinChunkChars = c.MinChunkChars
	}
	if c.MinEntityLines > 0 {
		opts.MinEntityLines = c.MinEntityLines
	}
	if c.StructuralThreshold > 0 {
		opts.StructuralThreshold = c.StructuralThreshold
	}
	if c.CoverageFloor > 0 {
		opts.CoverageFloor = c.CoverageFloor
	}
	return opts
}

// indexExists reports whether a database is present in the data dir.
func indexExists(cfg *config.Config) bool {
	_, err := os.Stat(filepath.Join(cfg.Store.DataDir, store.DBFileName))
	return err == nil
}
