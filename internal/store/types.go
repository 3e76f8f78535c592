// Package store persists chunks and their vectors. SQLite is the
// durable layer; an in-memory HNSW graph rebuilt on open serves
// similarity search. A file lock enforces one writer per data
// directory.
package store

import (
	"context"

	"github.com/semidx/semidx/internal/chunk"
)

// StoredChunk pairs a chunk with its embedding vector.
type StoredChunk struct {
	Chunk  chunk.Chunk
	Vector []float32
}

// SearchRow is one similarity hit.
type SearchRow struct {
	Chunk      chunk.Chunk
	Similarity float64
}

// Stats summarizes index contents.
type Stats struct {
	Chunks         int
	Files          int
	FullFileChunks int
	SizeBytes      int64
}

// IndexStore is the persistence interface for the indexing pipeline.
// Implementations must be safe for concurrent use within one process;
// cross-process exclusion is the store's own responsibility.
type IndexStore interface {
	// UpsertChunks inserts or replaces chunks by ID in one transaction.
	UpsertChunks(ctx context.Context, chunks []StoredChunk) error

	// ReplaceFile atomically swaps all chunks of a file for the given
	// set. Passing no chunks is equivalent to DeleteByFile.
	ReplaceFile(ctx context.Context, filePath string, chunks []StoredChunk) error

	// DeleteByFile removes every chunk of a file and returns the count.
	DeleteByFile(ctx context.Context, filePath string) (int, error)

	// SimilaritySearch returns up to k chunks with similarity at or
	// above minSimilarity, best first. A non-empty fileTypes list
	// restricts results to files with those extensions.
	SimilaritySearch(ctx context.Context, vector []float32, k int, minSimilarity float64, fileTypes []string) ([]SearchRow, error)

	// FullFileChunks returns up to limit full-file chunks, largest
	// content first. It backs the heuristic fallback scan.
	FullFileChunks(ctx context.Context, limit int) ([]chunk.Chunk, error)

	// FileHashes maps every indexed file path to its content hash.
	FileHashes(ctx context.Context) (map[string]string, error)

	// Stats reports index contents.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the database and the writer lock.
	Close() error
}
