package semantic

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"azul/internal/logging"
)

// ErrLengthMismatch is returned by Add when chunks and embeddings are not paired 1:1.
var ErrLengthMismatch = errors.New("chunks and embeddings differ in length")

// VectorIndex stores chunks with their embeddings in a per-project SQLite
// database and answers nearest-neighbour queries by cosine similarity.
type VectorIndex struct {
	db   *sql.DB
	path string

	mu  sync.RWMutex
	dim int // 0 until the first vector is stored
}

// IndexPath returns the database file for the project at root.
func IndexPath(dir, root string) string {
	return filepath.Join(dir, ProjectID(root)+".db")
}

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(path string) (*VectorIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	idx := &VectorIndex{db: db, path: path}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}

	if v, err := idx.Meta(context.Background(), "dim"); err == nil && v != "" {
		idx.dim, _ = strconv.Atoi(v)
	}
	return idx, nil
}

func (v *VectorIndex) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		language TEXT NOT NULL,
		chunk_type TEXT NOT NULL,
		chunk_hash TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := v.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (v *VectorIndex) Path() string {
	return v.path
}

// Dimension returns the embedding dimensionality, 0 when empty.
func (v *VectorIndex) Dimension() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dim
}

func (v *VectorIndex) Close() error {
	return v.db.Close()
}

// Meta reads a metadata value; missing keys return "".
func (v *VectorIndex) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := v.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetMeta stores a metadata value.
func (v *VectorIndex) SetMeta(ctx context.Context, key, value string) error {
	_, err := v.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// validEmbedding reports whether vec can be stored next to vectors of
// dimension dim (0 accepts any length).
func validEmbedding(vec []float32, dim int) bool {
	if len(vec) == 0 {
		return false
	}
	if dim > 0 && len(vec) != dim {
		return false
	}
	for _, f := range vec {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

// Add stores chunks[i] with embeddings[i]. Pairs whose embedding is nil,
// empty, non-finite or of the wrong dimension are dropped, never stored
// with a placeholder. It returns how many pairs were stored.
func (v *VectorIndex) Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) (int, error) {
	if len(chunks) != len(embeddings) {
		return 0, fmt.Errorf("%w: %d chunks, %d embeddings", ErrLengthMismatch, len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, file_path, start_line, end_line, language, chunk_type, chunk_hash, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	dim := v.dim
	added, dropped := 0, 0
	for i, c := range chunks {
		vec := embeddings[i]
		if !validEmbedding(vec, dim) {
			dropped++
			continue
		}
		if dim == 0 {
			dim = len(vec)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.FilePath, c.StartLine, c.EndLine,
			c.Language, c.ChunkType, c.ContentHash, c.Content, encodeVector(vec)); err != nil {
			return 0, fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
		added++
	}

	if dim != v.dim {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES ('dim', ?)`, strconv.Itoa(dim)); err != nil {
			return 0, fmt.Errorf("store dimension: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	v.dim = dim

	if dropped > 0 {
		logging.Debug("dropped chunks without a valid embedding", "dropped", dropped, "added", added)
	}
	return added, nil
}

// Query returns the k chunks most similar to vec, best first.
func (v *VectorIndex) Query(ctx context.Context, vec []float32, k int) ([]SearchResult, error) {
	if k <= 0 || len(vec) == 0 {
		return nil, nil
	}

	rows, err := v.db.QueryContext(ctx, `
		SELECT id, file_path, start_line, end_line, language, chunk_type, chunk_hash, content, embedding
		FROM chunks
	`)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	q := newQuery(vec)
	top := &topResults{k: k}
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.FilePath, &c.StartLine, &c.EndLine, &c.Language,
			&c.ChunkType, &c.ContentHash, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		stored := decodeVector(blob)
		if len(stored) != len(vec) {
			continue
		}
		top.add(SearchResult{Chunk: c, Score: q.score(stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return top.items, nil
}

// Embeddings returns the stored vectors of path keyed by chunk ID.
func (v *VectorIndex) Embeddings(ctx context.Context, path string) (map[string][]float32, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT id, embedding FROM chunks WHERE file_path = ?`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		out[id] = decodeVector(blob)
	}
	return out, rows.Err()
}

// DeleteByFile removes every chunk of path and returns how many were removed.
func (v *VectorIndex) DeleteByFile(ctx context.Context, path string) (int, error) {
	res, err := v.db.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear removes every chunk and forgets the dimension.
func (v *VectorIndex) Clear(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.db.ExecContext(ctx, `DELETE FROM chunks; DELETE FROM meta WHERE key = 'dim';`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	v.dim = 0
	return nil
}

// Count returns the number of stored chunks.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Files returns the distinct indexed file paths, sorted.
func (v *VectorIndex) Files(ctx context.Context) ([]string, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT DISTINCT file_path FROM chunks ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Size returns the database file size in bytes.
func (v *VectorIndex) Size() int64 {
	var total int64
	for _, suffix := range []string{"", "-wal"} {
		if info, err := os.Stat(v.path + suffix); err == nil {
			total += info.Size()
		}
	}
	return total
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
