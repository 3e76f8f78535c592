package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/semidx/semidx/internal/chunk"
	idxerrors "github.com/semidx/semidx/internal/errors"
)

const (
	// DBFileName is the SQLite database file inside the data directory.
	DBFileName = "index.db"

	// LockFileName guards the data directory against concurrent writers.
	LockFileName = "semidx.lock"
)

// SQLiteStore is the IndexStore backed by a single SQLite database in
// WAL mode plus an in-memory HNSW graph rebuilt on open. A flock on
// the data directory rejects a second writer process up front instead
// of letting it fail on busy timeouts mid-batch.
type SQLiteStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	dbPath  string
	dims    int
	vectors *vectorIndex
	lock    *flock.Flock
	logger  *slog.Logger
	closed  bool
}

var _ IndexStore = (*SQLiteStore)(nil)

// Open opens or creates the store in dataDir. An empty dataDir opens
// an in-memory store with no lock, used by tests.
func Open(dataDir string, dims int, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dims <= 0 {
		return nil, idxerrors.ValidationError(fmt.Sprintf("invalid dimensions %d", dims), nil)
	}

	s := &SQLiteStore{
		dims:    dims,
		vectors: newVectorIndex(dims),
		logger:  logger,
	}

	dsn := ":memory:"
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, idxerrors.StoreUnreachable(fmt.Sprintf("create data dir %s", dataDir), err)
		}

		s.lock = flock.New(filepath.Join(dataDir, LockFileName))
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, idxerrors.StoreUnreachable("acquire writer lock", err)
		}
		if !locked {
			return nil, idxerrors.New(idxerrors.ErrCodeStoreLocked,
				fmt.Sprintf("data dir %s is locked by another process", dataDir), nil)
		}

		s.dbPath = filepath.Join(dataDir, DBFileName)
		if err := validateIntegrity(s.dbPath); err != nil {
			logger.Warn("index database corrupted, clearing",
				"path", s.dbPath, "error", err)
			_ = os.Remove(s.dbPath)
			_ = os.Remove(s.dbPath + "-wal")
			_ = os.Remove(s.dbPath + "-shm")
		}
		dsn = s.dbPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		s.releaseLock()
		return nil, idxerrors.StoreUnreachable("open database", err)
	}

	// Single connection: one writer, and the in-memory DSN would
	// otherwise give each connection its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			s.releaseLock()
			return nil, idxerrors.StoreUnreachable("set pragma", err)
		}
	}

	s.db = db
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		s.releaseLock()
		return nil, err
	}
	if err := s.loadVectors(); err != nil {
		_ = db.Close()
		s.releaseLock()
		return nil, err
	}

	logger.Debug("store opened", "path", s.dbPath, "chunks", s.vectors.count())
	return s, nil
}

// validateIntegrity runs a quick integrity check on an existing
// database file. A missing file is fine; it will be created.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		file_path    TEXT NOT NULL,
		content      TEXT NOT NULL,
		start_line   INTEGER NOT NULL,
		end_line     INTEGER NOT NULL,
		chunk_index  INTEGER NOT NULL,
		is_full_file INTEGER NOT NULL,
		hash         TEXT NOT NULL,
		metadata     TEXT NOT NULL,
		vector       BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path);
	CREATE INDEX IF NOT EXISTS idx_chunks_full ON chunks(is_full_file);
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return idxerrors.StoreError("initialize schema", err)
	}

	// A store created with one embedding dimension can never serve
	// vectors of another.
	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO meta(key, value) VALUES('dimensions', ?)`,
			strconv.Itoa(s.dims))
		if err != nil {
			return idxerrors.StoreError("record dimensions", err)
		}
	case err != nil:
		return idxerrors.StoreError("read dimensions", err)
	default:
		if stored != strconv.Itoa(s.dims) {
			return idxerrors.New(idxerrors.ErrCodeDimMismatch,
				fmt.Sprintf("store has %s dimensions, configured for %d; reindex required", stored, s.dims), nil)
		}
	}
	return nil
}

// loadVectors rebuilds the HNSW graph from persisted rows.
func (s *SQLiteStore) loadVectors() error {
	rows, err := s.db.Query(`SELECT id, vector FROM chunks`)
	if err != nil {
		return idxerrors.StoreError("load vectors", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return idxerrors.StoreError("scan vector row", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return idxerrors.StoreError(fmt.Sprintf("decode vector for chunk %s", id), err)
		}
		if err := s.vectors.add(id, vec); err != nil {
			return idxerrors.StoreError(fmt.Sprintf("index vector for chunk %s", id), err)
		}
	}
	return rows.Err()
}

const upsertSQL = `
	INSERT INTO chunks (id, file_path, content, start_line, end_line,
		chunk_index, is_full_file, hash, metadata, vector)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		file_path = excluded.file_path,
		content = excluded.content,
		start_line = excluded.start_line,
		end_line = excluded.end_line,
		chunk_index = excluded.chunk_index,
		is_full_file = excluded.is_full_file,
		hash = excluded.hash,
		metadata = excluded.metadata,
		vector = excluded.vector`

// UpsertChunks inserts or replaces chunks by ID in one transaction.
func (s *SQLiteStore) UpsertChunks(ctx context.Context, chunks []StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return idxerrors.StoreUnreachable("store is closed", nil)
	}

	for _, sc := range chunks {
		if len(sc.Vector) != s.dims {
			return idxerrors.New(idxerrors.ErrCodeDimMismatch,
				fmt.Sprintf("chunk %s vector has %d dimensions, store expects %d",
					sc.Chunk.ID, len(sc.Vector), s.dims), nil)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return idxerrors.StoreError("begin upsert", err)
	}
	defer tx.Rollback()

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return idxerrors.StoreError("commit upsert", err)
	}

	for _, sc := range chunks {
		if err := s.vectors.add(sc.Chunk.ID, sc.Vector); err != nil {
			return idxerrors.StoreError("update vector index", err)
		}
	}
	return nil
}

// ReplaceFile atomically swaps all chunks of a file.
func (s *SQLiteStore) ReplaceFile(ctx context.Context, filePath string, chunks []StoredChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return idxerrors.StoreUnreachable("store is closed", nil)
	}

	for _, sc := range chunks {
		if len(sc.Vector) != s.dims {
			return idxerrors.New(idxerrors.ErrCodeDimMismatch,
				fmt.Sprintf("chunk %s vector has %d dimensions, store expects %d",
					sc.Chunk.ID, len(sc.Vector), s.dims), nil)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return idxerrors.StoreError("begin replace", err)
	}
	defer tx.Rollback()

	oldIDs, err := fileChunkIDs(ctx, tx, filePath)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, filePath); err != nil {
		return idxerrors.StoreError(fmt.Sprintf("delete chunks of %s", filePath), err)
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return idxerrors.StoreError("commit replace", err)
	}

	for _, id := range oldIDs {
		s.vectors.remove(id)
	}
	for _, sc := range chunks {
		if err := s.vectors.add(sc.Chunk.ID, sc.Vector); err != nil {
			return idxerrors.StoreError("update vector index", err)
		}
	}
	return nil
}

// DeleteByFile removes every chunk of a file and returns the count.
func (s *SQLiteStore) DeleteByFile(ctx context.Context, filePath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, idxerrors.StoreUnreachable("store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, idxerrors.StoreError("begin delete", err)
	}
	defer tx.Rollback()

	ids, err := fileChunkIDs(ctx, tx, filePath)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, filePath); err != nil {
		return 0, idxerrors.StoreError(fmt.Sprintf("delete chunks of %s", filePath), err)
	}
	if err := tx.Commit(); err != nil {
		return 0, idxerrors.StoreError("commit delete", err)
	}

	for _, id := range ids {
		s.vectors.remove(id)
	}
	return len(ids), nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []StoredChunk) error {
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return idxerrors.StoreError("prepare upsert", err)
	}
	defer stmt.Close()

	for _, sc := range chunks {
		meta, err := json.Marshal(sc.Chunk.Metadata)
		if err != nil {
			return idxerrors.StoreError(fmt.Sprintf("encode metadata for chunk %s", sc.Chunk.ID), err)
		}
		_, err = stmt.ExecContext(ctx,
			sc.Chunk.ID, sc.Chunk.FilePath, sc.Chunk.Content,
			sc.Chunk.StartLine, sc.Chunk.EndLine, sc.Chunk.ChunkIndex,
			boolToInt(sc.Chunk.IsFullFile), sc.Chunk.Hash, string(meta),
			encodeVector(sc.Vector))
		if err != nil {
			return idxerrors.StoreError(fmt.Sprintf("write chunk %s", sc.Chunk.ID), err)
		}
	}
	return nil
}

func fileChunkIDs(ctx context.Context, tx *sql.Tx, filePath string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, idxerrors.StoreError(fmt.Sprintf("list chunks of %s", filePath), err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, idxerrors.StoreError("scan chunk id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SimilaritySearch returns up to k chunks at or above minSimilarity.
// When fileTypes is non-empty the vector search over-fetches so the
// extension filter can still fill k results.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, vector []float32, k int, minSimilarity float64, fileTypes []string) ([]SearchRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, idxerrors.StoreUnreachable("store is closed", nil)
	}

	fetch := k
	if len(fileTypes) > 0 {
		fetch = k * 4
	}
	hits, err := s.vectors.search(vector, fetch)
	if err != nil {
		return nil, idxerrors.New(idxerrors.ErrCodeSearchFailed, "similarity search", err)
	}

	results := make([]SearchRow, 0, k)
	for _, hit := range hits {
		if hit.similarity < minSimilarity {
			continue
		}
		ch, err := s.chunkByID(ctx, hit.id)
		if err != nil {
			return nil, err
		}
		if !matchesFileType(ch.FilePath, fileTypes) {
			continue
		}
		results = append(results, SearchRow{Chunk: ch, Similarity: hit.similarity})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// matchesFileType reports whether path has one of the extensions.
// An empty filter matches everything.
func matchesFileType(path string, fileTypes []string) bool {
	if len(fileTypes) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, ft := range fileTypes {
		if ext == strings.ToLower(strings.TrimPrefix(ft, ".")) {
			return true
		}
	}
	return false
}

const chunkColumns = `id, file_path, content, start_line, end_line, chunk_index, is_full_file, hash, metadata`

func (s *SQLiteStore) chunkByID(ctx context.Context, id string) (chunk.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	return scanChunk(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (chunk.Chunk, error) {
	var ch chunk.Chunk
	var fullFile int
	var meta string
	err := row.Scan(&ch.ID, &ch.FilePath, &ch.Content, &ch.StartLine,
		&ch.EndLine, &ch.ChunkIndex, &fullFile, &ch.Hash, &meta)
	if err != nil {
		return chunk.Chunk{}, idxerrors.StoreError("scan chunk row", err)
	}
	ch.IsFullFile = fullFile != 0
	if err := json.Unmarshal([]byte(meta), &ch.Metadata); err != nil {
		return chunk.Chunk{}, idxerrors.StoreError(fmt.Sprintf("decode metadata for chunk %s", ch.ID), err)
	}
	return ch, nil
}

// FullFileChunks returns up to limit full-file chunks, largest first.
func (s *SQLiteStore) FullFileChunks(ctx context.Context, limit int) ([]chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, idxerrors.StoreUnreachable("store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks
		 WHERE is_full_file = 1
		 ORDER BY length(content) DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, idxerrors.StoreError("query full-file chunks", err)
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// FileHashes maps indexed file paths to their content hashes.
func (s *SQLiteStore) FileHashes(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, idxerrors.StoreUnreachable("store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, hash FROM chunks WHERE is_full_file = 1`)
	if err != nil {
		return nil, idxerrors.StoreError("query file hashes", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, idxerrors.StoreError("scan file hash", err)
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}

// Stats reports index contents.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, idxerrors.StoreUnreachable("store is closed", nil)
	}

	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT file_path), COALESCE(SUM(is_full_file), 0) FROM chunks`).
		Scan(&st.Chunks, &st.Files, &st.FullFileChunks)
	if err != nil {
		return Stats{}, idxerrors.StoreError("query stats", err)
	}

	if s.dbPath != "" {
		if info, err := os.Stat(s.dbPath); err == nil {
			st.SizeBytes = info.Size()
		}
	}
	return st, nil
}

// Close releases the database and the writer lock. Safe to call twice.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.db.Close()
	s.releaseLock()
	if err != nil {
		return idxerrors.StoreError("close database", err)
	}
	return nil
}

func (s *SQLiteStore) releaseLock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
