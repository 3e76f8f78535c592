package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semidx/semidx/internal/chunk"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/embed"
	"github.com/semidx/semidx/internal/index"
	"github.com/semidx/semidx/internal/store"
)

const testDims = 64

func newWatchFixture(t *testing.T) (*Watcher, *store.SQLiteStore, string) {
	t.Helper()

	st, err := store.Open("", testDims, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Embedding.Dimensions = testDims
	cfg.Embedding.Offline = true

	root := t.TempDir()
	updater := index.NewUpdater(root,
		chunk.NewChunker(chunk.DefaultOptions(), nil),
		embed.NewStaticEmbedder(testDims),
		st, cfg, nil)

	w := New(root, updater, cfg.Discovery, 50*time.Millisecond, nil)
	w.flushed = make(chan []string, 8)
	return w, st, root
}

func waitForFlush(t *testing.T, w *Watcher) []string {
	t.Helper()
	select {
	case paths := <-w.flushed:
		return paths
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch flush")
		return nil
	}
}

func TestWatcherIndexesNewFile(t *testing.T) {
	w, st, root := newWatchFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register the root.
	time.Sleep(100 * time.Millisecond)

	content := "package demo\n\nfunc Handle(input string) string {\n\treturn input\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "demo.go"), []byte(content), 0o644))

	paths := waitForFlush(t, w)
	assert.Contains(t, paths, "demo.go")

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherRemovesDeletedFile(t *testing.T) {
	w, st, root := newWatchFixture(t)

	path := filepath.Join(root, "gone.go")
	content := "package demo\n\nfunc Soon(input string) string {\n\treturn input\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(content+"// changed\n"), 0o644))
	waitForFlush(t, w)

	require.NoError(t, os.Remove(path))
	waitForFlush(t, w)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
}

func TestWatcherIgnoresNonIndexableFiles(t *testing.T) {
	w, st, root := newWatchFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte("blob"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.go"), []byte("package x"), 0o644))

	// No flush should arrive for either file.
	select {
	case paths := <-w.flushed:
		t.Fatalf("unexpected flush for %v", paths)
	case <-time.After(300 * time.Millisecond):
	}

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
}
