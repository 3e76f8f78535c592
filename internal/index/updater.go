// Package index coordinates the pipeline: discover files, chunk them,
// embed the chunks, and write them to the store. It owns batching,
// bounded concurrency, and the bookkeeping that makes re-runs
// incremental.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semidx/semidx/internal/chunk"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/discover"
	"github.com/semidx/semidx/internal/embed"
	idxerrors "github.com/semidx/semidx/internal/errors"
	"github.com/semidx/semidx/internal/store"
)

// maxRecordedErrors caps how many per-file errors a Result carries.
const maxRecordedErrors = 20

// Result accumulates the outcome of one indexing operation.
type Result struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	FilesRemoved  int
	ChunksWritten int
	ChunksDeleted int
	Duration      time.Duration

	mu     sync.Mutex
	Errors []error
}

func (r *Result) addError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Errors) < maxRecordedErrors {
		r.Errors = append(r.Errors, err)
	}
}

// Updater drives indexing for one project.
type Updater struct {
	root     string
	chunker  *chunk.Chunker
	embedder embed.Client
	store    store.IndexStore
	cfg      *config.Config
	logger   *slog.Logger

	// pathLocks serializes work per file so a watch event and a manual
	// update never interleave writes for the same path.
	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex
}

// NewUpdater creates an Updater for the project at root.
func NewUpdater(root string, chunker *chunk.Chunker, embedder embed.Client, st store.IndexStore, cfg *config.Config, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		root:      root,
		chunker:   chunker,
		embedder:  embedder,
		store:     st,
		cfg:       cfg,
		logger:    logger,
		pathLocks: make(map[string]*sync.Mutex),
	}
}

// InitializeProject indexes the whole project: discovers files, indexes
// the new and changed ones, and removes stored files that no longer
// exist on disk.
func (u *Updater) InitializeProject(ctx context.Context) (*Result, error) {
	start := time.Now()

	files, err := discover.ListFiles(ctx, u.root, u.cfg.Discovery)
	if err != nil {
		return nil, err
	}
	u.logger.Info("indexing project", "root", u.root, "files", len(files))

	result, err := u.UpdateFiles(ctx, files)
	if err != nil {
		return result, err
	}

	// Drop stored files that discovery no longer sees.
	stored, err := u.store.FileHashes(ctx)
	if err != nil {
		return result, err
	}
	onDisk := make(map[string]bool, len(files))
	for _, f := range files {
		onDisk[f] = true
	}
	var stale []string
	for path := range stored {
		if !onDisk[path] {
			stale = append(stale, path)
		}
	}
	sort.Strings(stale)
	if len(stale) > 0 {
		removed, err := u.RemoveFiles(ctx, stale)
		if err != nil {
			return result, err
		}
		result.FilesRemoved += removed.FilesRemoved
		result.ChunksDeleted += removed.ChunksDeleted
	}

	result.Duration = time.Since(start)
	u.logger.Info("project indexed",
		"indexed", result.FilesIndexed,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"removed", result.FilesRemoved,
		"chunks", result.ChunksWritten,
		"duration", result.Duration)
	return result, nil
}

// UpdateFiles indexes the given paths (relative to the project root).
// Unchanged files are skipped by content hash; files missing from disk
// are removed from the store. Per-file failures accumulate in the
// result; only a fatal store error aborts the run.
func (u *Updater) UpdateFiles(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if len(paths) == 0 {
		return result, nil
	}

	known, err := u.store.FileHashes(ctx)
	if err != nil {
		return nil, err
	}

	batchSize := u.cfg.Performance.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	concurrency := u.cfg.Performance.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	for offset := 0; offset < len(paths); offset += batchSize {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		end := offset + batchSize
		if end > len(paths) {
			end = len(paths)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, path := range paths[offset:end] {
			g.Go(func() error {
				return u.processFile(gctx, path, known[path], result)
			})
		}
		if err := g.Wait(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// processFile chunks, embeds, and stores one file. Non-fatal errors are
// recorded and swallowed so one bad file never sinks the batch.
func (u *Updater) processFile(ctx context.Context, path, knownHash string, result *Result) error {
	unlock := u.lockPath(path)
	defer unlock()

	content, err := os.ReadFile(filepath.Join(u.root, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return u.removeOne(ctx, path, result)
		}
		result.mu.Lock()
		result.FilesFailed++
		result.mu.Unlock()
		result.addError(idxerrors.IngestionError("read "+path, err))
		return nil
	}

	if knownHash != "" && chunk.HashContent(content) == knownHash {
		result.mu.Lock()
		result.FilesSkipped++
		result.mu.Unlock()
		return nil
	}

	chunks, err := u.chunker.Chunk(path, content)
	if err != nil {
		if _, skipped := chunk.IsSkip(err); skipped {
			result.mu.Lock()
			result.FilesSkipped++
			result.mu.Unlock()
			// A previously indexed file that became unindexable (e.g.
			// truncated to nothing) must not linger in the store.
			if knownHash != "" {
				return u.removeOne(ctx, path, result)
			}
			return nil
		}
		result.mu.Lock()
		result.FilesFailed++
		result.mu.Unlock()
		result.addError(idxerrors.IngestionError("chunk "+path, err))
		return nil
	}

	stored, err := u.embedChunks(ctx, chunks)
	if err != nil {
		if idxerrors.IsFatal(err) {
			return err
		}
		result.mu.Lock()
		result.FilesFailed++
		result.mu.Unlock()
		result.addError(fmt.Errorf("embed %s: %w", path, err))
		return nil
	}

	storeCtx, cancel := u.storeContext(ctx)
	defer cancel()
	if err := u.store.ReplaceFile(storeCtx, path, stored); err != nil {
		if idxerrors.IsFatal(err) {
			return err
		}
		result.mu.Lock()
		result.FilesFailed++
		result.mu.Unlock()
		result.addError(fmt.Errorf("store %s: %w", path, err))
		return nil
	}

	result.mu.Lock()
	result.FilesIndexed++
	result.ChunksWritten += len(stored)
	result.mu.Unlock()

	u.logger.Debug("file indexed", "path", path, "chunks", len(stored))
	return nil
}

// embedChunks embeds chunk contents in service-sized batches.
func (u *Updater) embedChunks(ctx context.Context, chunks []*chunk.Chunk) ([]store.StoredChunk, error) {
	batchSize := u.cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	stored := make([]store.StoredChunk, 0, len(chunks))
	for offset := 0; offset < len(chunks); offset += batchSize {
		end := offset + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}
		vectors, err := u.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		for i, ch := range batch {
			stored = append(stored, store.StoredChunk{Chunk: *ch, Vector: vectors[i]})
		}
	}
	return stored, nil
}

// RemoveFiles deletes the given paths from the store.
func (u *Updater) RemoveFiles(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		if err := u.removeOne(ctx, path, result); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (u *Updater) removeOne(ctx context.Context, path string, result *Result) error {
	storeCtx, cancel := u.storeContext(ctx)
	defer cancel()

	n, err := u.store.DeleteByFile(storeCtx, path)
	if err != nil {
		if idxerrors.IsFatal(err) {
			return err
		}
		result.mu.Lock()
		result.FilesFailed++
		result.mu.Unlock()
		result.addError(fmt.Errorf("remove %s: %w", path, err))
		return nil
	}
	if n > 0 {
		result.mu.Lock()
		result.FilesRemoved++
		result.ChunksDeleted += n
		result.mu.Unlock()
		u.logger.Debug("file removed from index", "path", path, "chunks", n)
	}
	return nil
}

// storeContext applies the configured per-write timeout.
func (u *Updater) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := u.cfg.Store.Timeout
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (u *Updater) lockPath(path string) func() {
	u.mu.Lock()
	m, ok := u.pathLocks[path]
	if !ok {
		m = &sync.Mutex{}
		u.pathLocks[path] = m
	}
	u.mu.Unlock()

	m.Lock()
	return m.Unlock
}
