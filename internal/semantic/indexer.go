package semantic

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"azul/internal/fileutil"
	"azul/internal/git"
	"azul/internal/logging"
)

const DefaultBatchSize = 10

// IndexerOptions controls which files are indexed and how.
type IndexerOptions struct {
	BatchSize   int
	MaxFileSize int64
	Exclude     []string // doublestar patterns on project-relative paths
}

// IndexStats summarizes an indexing run.
type IndexStats struct {
	Files    int
	Chunks   int
	Embedded int // chunks stored, including reused embeddings
	Reused   int
	Failed   int // chunks dropped for lack of an embedding
	Removed  int // files whose chunks were deleted
	Duration time.Duration
}

// Progress is called after each file during IndexProject.
type Progress func(done, total int, path string)

// Indexer walks the project, chunks and embeds files and keeps the
// vector index in sync. Write operations are serialized.
type Indexer struct {
	root      string
	chunker   *Chunker
	embedder  Embedder
	index     *VectorIndex
	gitIgnore *git.GitIgnore
	opts      IndexerOptions
	metrics   *Metrics

	mu sync.Mutex
}

// NewIndexer creates an indexer for the project at root. metrics may be nil.
func NewIndexer(root string, chunker *Chunker, embedder Embedder, index *VectorIndex, opts IndexerOptions, metrics *Metrics) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = fileutil.DefaultMaxFileSize
	}

	gitIgnore := git.NewGitIgnore(root)
	if err := gitIgnore.Load(); err != nil {
		logging.Debug("no usable .gitignore", "root", root, "error", err)
	}

	return &Indexer{
		root:      root,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		gitIgnore: gitIgnore,
		opts:      opts,
		metrics:   metrics,
	}
}

// Index returns the underlying vector index.
func (i *Indexer) Index() *VectorIndex {
	return i.index
}

// Root returns the project root.
func (i *Indexer) Root() string {
	return i.root
}

var indexableExts = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true, ".mjs": true,
	".java": true, ".go": true, ".rs": true, ".cpp": true, ".c": true, ".h": true, ".hpp": true,
	".cs": true, ".rb": true, ".php": true, ".swift": true, ".kt": true, ".scala": true,
	".sh": true, ".bash": true, ".zsh": true, ".yaml": true, ".yml": true, ".json": true,
	".xml": true, ".html": true, ".css": true, ".scss": true, ".md": true, ".rst": true,
	".toml": true, ".ini": true, ".conf": true, ".sql": true, ".r": true, ".m": true,
	".lua": true, ".pl": true, ".txt": true,
}

var skipDirs = map[string]bool{
	"node_modules": true, "vendor": true, "target": true, "build": true,
	"dist": true, "out": true, "__pycache__": true, "venv": true,
	"bin": true, "obj": true,
}

func (i *Indexer) excluded(rel string) bool {
	for _, p := range i.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func hiddenPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

// ShouldIndex reports whether the file at the project-relative path rel
// passes the hidden, extension, ignore and exclude rules. Size and binary
// checks happen when the file is read.
func (i *Indexer) ShouldIndex(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "" || strings.HasPrefix(rel, "../") || hiddenPath(rel) {
		return false
	}
	if !indexableExts[strings.ToLower(filepath.Ext(rel))] {
		return false
	}
	for _, part := range strings.Split(filepath.Dir(rel), "/") {
		if skipDirs[part] {
			return false
		}
	}
	if i.gitIgnore.Match(rel, false) || i.excluded(rel) {
		return false
	}
	return true
}

// DiscoverFiles returns the project-relative paths of all indexable files.
func (i *Indexer) DiscoverFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(i.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == i.root {
			return nil
		}

		rel, relErr := filepath.Rel(i.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || skipDirs[name] || i.gitIgnore.Match(rel, true) || i.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && i.ShouldIndex(rel) {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

// IndexProject brings the index in line with the project: every indexable
// file is chunked and stored, unchanged chunks keep their embeddings, and
// files that disappeared are removed. A change of embedding model clears
// the index first.
func (i *Indexer) IndexProject(ctx context.Context, progress Progress) (*IndexStats, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	start := time.Now()
	stats := &IndexStats{}

	if err := i.checkModel(ctx); err != nil {
		return nil, err
	}

	files, err := i.DiscoverFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	present := make(map[string]bool, len(files))
	for n, rel := range files {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		present[rel] = true

		if err := i.indexFile(ctx, rel, stats); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			logging.Warn("failed to index file", "path", rel, "error", err)
		}
		if progress != nil {
			progress(n+1, len(files), rel)
		}
	}

	indexed, err := i.index.Files(ctx)
	if err != nil {
		return stats, fmt.Errorf("list indexed files: %w", err)
	}
	for _, rel := range indexed {
		if present[rel] {
			continue
		}
		if _, err := i.index.DeleteByFile(ctx, rel); err != nil {
			logging.Warn("failed to remove stale file from index", "path", rel, "error", err)
			continue
		}
		stats.Removed++
	}

	stats.Duration = time.Since(start)
	if i.metrics != nil {
		i.metrics.RecordIndex(IndexMetrics{
			Duration:  stats.Duration,
			Files:     stats.Files,
			Chunks:    stats.Chunks,
			Embedded:  stats.Embedded,
			Failed:    stats.Failed,
			IndexSize: i.index.Size(),
		})
	}
	logging.Info("project indexed", "root", i.root, "files", stats.Files, "chunks", stats.Chunks,
		"embedded", stats.Embedded, "reused", stats.Reused, "failed", stats.Failed,
		"removed", stats.Removed, "duration", stats.Duration)
	return stats, nil
}

// checkModel clears the index when it was built with another embedding model.
func (i *Indexer) checkModel(ctx context.Context) error {
	stored, err := i.index.Meta(ctx, "model")
	if err != nil {
		return fmt.Errorf("read index metadata: %w", err)
	}
	if stored == i.embedder.Model() {
		return nil
	}
	if stored != "" {
		logging.Info("embedding model changed, clearing index", "old", stored, "new", i.embedder.Model())
		if err := i.index.Clear(ctx); err != nil {
			return err
		}
	}
	return i.index.SetMeta(ctx, "model", i.embedder.Model())
}

// UpdateFile re-indexes one file. Missing or no longer indexable files are
// removed from the index.
func (i *Indexer) UpdateFile(ctx context.Context, path string) (*IndexStats, error) {
	rel, err := i.rel(path)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	stats := &IndexStats{}
	info, statErr := os.Stat(filepath.Join(i.root, filepath.FromSlash(rel)))
	if statErr != nil || info.IsDir() || !i.ShouldIndex(rel) {
		n, err := i.index.DeleteByFile(ctx, rel)
		if n > 0 {
			stats.Removed = 1
		}
		return stats, err
	}

	if err := i.checkModel(ctx); err != nil {
		return nil, err
	}
	if err := i.indexFile(ctx, rel, stats); err != nil {
		return stats, err
	}
	logging.Debug("file re-indexed", "path", rel, "chunks", stats.Chunks, "embedded", stats.Embedded)
	return stats, nil
}

// RemoveFile deletes the chunks of one file and returns how many were removed.
func (i *Indexer) RemoveFile(ctx context.Context, path string) (int, error) {
	rel, err := i.rel(path)
	if err != nil {
		return 0, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.DeleteByFile(ctx, rel)
}

// Clear empties the index.
func (i *Indexer) Clear(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Clear(ctx)
}

func (i *Indexer) rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}
	rel, err := filepath.Rel(i.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the indexed project", path)
	}
	return filepath.ToSlash(rel), nil
}

// indexFile replaces the chunks of rel. Embeddings of chunks whose ID is
// unchanged are reused instead of asking the provider again.
func (i *Indexer) indexFile(ctx context.Context, rel string, stats *IndexStats) error {
	abs := filepath.Join(i.root, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.Size() > i.opts.MaxFileSize {
		logging.Debug("skipping large file", "path", rel, "size", info.Size())
		_, err := i.index.DeleteByFile(ctx, rel)
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return err
	}
	if fileutil.IsBinary(data) {
		_, err := i.index.DeleteByFile(ctx, rel)
		return err
	}

	chunks := i.chunker.ChunkFile(rel, string(data))
	stats.Files++
	stats.Chunks += len(chunks)

	existing, err := i.index.Embeddings(ctx, rel)
	if err != nil {
		logging.Debug("could not load existing embeddings", "path", rel, "error", err)
		existing = nil
	}

	embeddings := make([][]float32, len(chunks))
	var pending []int
	for n, c := range chunks {
		if vec, ok := existing[c.ID]; ok && len(vec) > 0 {
			embeddings[n] = vec
			stats.Reused++
			continue
		}
		pending = append(pending, n)
	}

	for start := 0; start < len(pending); start += i.opts.BatchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		end := min(start+i.opts.BatchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for k, n := range batch {
			texts[k] = chunks[n].Content
		}
		vecs, err := i.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Warn("embedding batch failed", "path", rel, "chunks", len(batch), "error", err)
			continue
		}
		for k, n := range batch {
			if k < len(vecs) {
				embeddings[n] = vecs[k]
			}
		}
	}

	if _, err := i.index.DeleteByFile(ctx, rel); err != nil {
		return err
	}
	added, err := i.index.Add(ctx, chunks, embeddings)
	if err != nil {
		return err
	}
	stats.Embedded += added
	stats.Failed += len(chunks) - added
	return nil
}
