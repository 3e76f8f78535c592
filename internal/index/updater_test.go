package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semidx/semidx/internal/chunk"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/embed"
	idxerrors "github.com/semidx/semidx/internal/errors"
	"github.com/semidx/semidx/internal/store"
)

const testDims = 64

type fixture struct {
	root    string
	store   *store.SQLiteStore
	updater *Updater
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.Open("", testDims, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Embedding.Dimensions = testDims
	cfg.Embedding.Offline = true

	root := t.TempDir()
	u := NewUpdater(root,
		chunk.NewChunker(chunk.DefaultOptions(), nil),
		embed.NewStaticEmbedder(testDims),
		st, cfg, nil)
	return &fixture{root: root, store: st, updater: u}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const goFileA = `package alpha

// Process handles one request end to end.
func Process(input string) (string, error) {
	return input + " processed", nil
}
`

const goFileB = `package beta

func Validate(input string) bool {
	return len(input) > 0
}
`

func TestInitializeProjectIndexesTree(t *testing.T) {
	f := newFixture(t)
	f.write(t, "alpha/process.go", goFileA)
	f.write(t, "beta/validate.go", goFileB)
	f.write(t, "README.md", "# Project\n\nA longer description of what this project does and why.")

	result, err := f.updater.InitializeProject(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilesIndexed)
	assert.Equal(t, 0, result.FilesFailed)
	assert.Empty(t, result.Errors)

	st, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Files)
	assert.Equal(t, 3, st.FullFileChunks)
	assert.Equal(t, result.ChunksWritten, st.Chunks)
}

func TestUpdateFilesSkipsUnchanged(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.go", goFileA)
	f.write(t, "b.go", goFileB)

	_, err := f.updater.UpdateFiles(context.Background(), []string{"a.go", "b.go"})
	require.NoError(t, err)

	result, err := f.updater.UpdateFiles(context.Background(), []string{"a.go", "b.go"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilesIndexed)
	assert.Equal(t, 2, result.FilesSkipped)
	assert.Equal(t, 0, result.ChunksWritten)
}

func TestUpdateFilesReindexesChanged(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.go", goFileA)

	_, err := f.updater.UpdateFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)

	f.write(t, "a.go", goFileB)
	result, err := f.updater.UpdateFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)

	hashes, err := f.store.FileHashes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chunk.HashContent([]byte(goFileB)), hashes["a.go"])
}

func TestUpdateFilesRemovesMissing(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.go", goFileA)

	_, err := f.updater.UpdateFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.root, "a.go")))
	result, err := f.updater.UpdateFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRemoved)
	assert.Greater(t, result.ChunksDeleted, 0)

	st, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Chunks)
}

func TestInitializeProjectPrunesStaleFiles(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.go", goFileA)
	f.write(t, "b.go", goFileB)

	_, err := f.updater.InitializeProject(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.root, "b.go")))
	result, err := f.updater.InitializeProject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRemoved)
	assert.Equal(t, 1, result.FilesSkipped)

	hashes, err := f.store.FileHashes(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, hashes, "b.go")
}

func TestRemoveFilesAccounting(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.go", goFileA)

	_, err := f.updater.UpdateFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)

	result, err := f.updater.RemoveFiles(context.Background(), []string{"a.go", "never-indexed.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRemoved)
	assert.Greater(t, result.ChunksDeleted, 0)
	assert.Equal(t, 0, result.FilesFailed)
}

func TestUpdateFilesBadFileDoesNotSinkBatch(t *testing.T) {
	f := newFixture(t)
	f.write(t, "good.go", goFileA)
	f.write(t, "empty.go", "   \n")

	result, err := f.updater.UpdateFiles(context.Background(), []string{"good.go", "empty.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Equal(t, 0, result.FilesFailed)
}

func TestUpdateFilesSkipDeletesStaleChunks(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.go", goFileA)

	_, err := f.updater.UpdateFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)

	// Truncate to unindexable content; the old chunks must go away.
	f.write(t, "a.go", " ")
	result, err := f.updater.UpdateFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRemoved)

	st, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Chunks)
}

// fatalStore fails every write with a fatal store error.
type fatalStore struct{ store.IndexStore }

func (s *fatalStore) ReplaceFile(ctx context.Context, filePath string, chunks []store.StoredChunk) error {
	return idxerrors.StoreUnreachable("disk gone", nil)
}

func TestUpdateFilesFatalStoreErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.go", goFileA)

	u := NewUpdater(f.root,
		chunk.NewChunker(chunk.DefaultOptions(), nil),
		embed.NewStaticEmbedder(testDims),
		&fatalStore{IndexStore: f.store},
		f.updater.cfg, nil)

	_, err := u.UpdateFiles(context.Background(), []string{"a.go"})
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeStoreUnreachable, idxerrors.GetCode(err))
}

func TestUpdateFilesCancellation(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.go", goFileA)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.updater.UpdateFiles(ctx, []string{"a.go"})
	assert.ErrorIs(t, err, context.Canceled)
}
