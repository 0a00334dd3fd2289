package semantic

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps each word to one of dim buckets, so texts sharing
// words point in similar directions.
type fakeEmbedder struct {
	dim   int
	fail  bool
	mu    sync.Mutex
	calls int // texts embedded
}

func (f *fakeEmbedder) Model() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return nil, errors.New("embedding service unavailable")
	}
	vec := make([]float32, f.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(f.dim)]++
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		f.mu.Lock()
		f.calls += len(texts)
		f.mu.Unlock()
		return nil, errors.New("embedding service unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func openTestIndex(t *testing.T) *VectorIndex {
	t.Helper()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func chunkAt(path string, start int, content string) Chunk {
	return newChunk(path, start, start, "text", ChunkBlock, content)
}

func TestIndexAddDropsInvalidEmbeddings(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	chunks := []Chunk{
		chunkAt("a.txt", 1, "one"),
		chunkAt("a.txt", 2, "two"),
		chunkAt("a.txt", 3, "three"),
		chunkAt("a.txt", 4, "four"),
		chunkAt("a.txt", 5, "five"),
	}
	nan := float32(math.NaN())
	embeddings := [][]float32{
		{1, 0, 0},
		nil,
		{0, nan, 1},
		{1, 1},
		{0, 1, 0},
	}

	added, err := idx.Add(ctx, chunks, embeddings)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, idx.Dimension())

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = idx.Add(ctx, chunks, embeddings[:1])
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestIndexQueryRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	_, err := idx.Add(ctx,
		[]Chunk{chunkAt("x.go", 1, "x"), chunkAt("y.go", 1, "y"), chunkAt("xy.go", 1, "xy")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)
	require.NoError(t, err)

	results, err := idx.Query(ctx, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x.go", results[0].Chunk.FilePath)
	assert.Equal(t, "xy.go", results[1].Chunk.FilePath)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "x", results[0].Chunk.Content)

	none, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Empty(t, none, "vectors of another dimension never match")
}

func TestIndexDeleteClearAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "p.db")
	idx, err := OpenIndex(path)
	require.NoError(t, err)

	_, err = idx.Add(ctx,
		[]Chunk{chunkAt("a.go", 1, "a"), chunkAt("a.go", 2, "b"), chunkAt("b.go", 1, "c")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)
	require.NoError(t, err)

	files, err := idx.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, files)

	removed, err := idx.DeleteByFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	require.NoError(t, idx.Close())

	idx, err = OpenIndex(path)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 2, idx.Dimension(), "dimension survives reopening")

	n, _ := idx.Count(ctx)
	assert.Equal(t, 1, n)

	require.NoError(t, idx.Clear(ctx))
	n, _ = idx.Count(ctx)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, idx.Dimension())
}

func TestIndexPathIsPerProject(t *testing.T) {
	a := IndexPath("/idx", "/home/me/one")
	b := IndexPath("/idx", "/home/me/two")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, IndexPath("/idx", "/home/me/one/"))
	assert.True(t, strings.HasSuffix(a, ".db"))
}

type project struct {
	root     string
	idx      *VectorIndex
	embedder *fakeEmbedder
	indexer  *Indexer
}

func newProject(t *testing.T, files map[string]string, opts IndexerOptions) *project {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		writeFile(t, root, rel, content)
	}

	p := &project{root: root, idx: openTestIndex(t), embedder: &fakeEmbedder{dim: 64}}
	p.indexer = NewIndexer(root, NewChunker(128, 2), p.embedder, p.idx, opts, NewMetrics())
	return p
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestIndexProjectAllEmbeddingsFail(t *testing.T) {
	p := newProject(t, map[string]string{
		"main.go":   goSource,
		"README.md": "# Demo\n\nSome docs.\n",
	}, IndexerOptions{})
	p.embedder.fail = true

	stats, err := p.indexer.IndexProject(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Greater(t, stats.Chunks, 0)
	assert.Equal(t, 0, stats.Embedded)
	assert.Equal(t, stats.Chunks, stats.Failed)

	n, err := p.idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDiscoverFilesRespectsIgnoreRules(t *testing.T) {
	p := newProject(t, map[string]string{
		"main.go":               "package main\n",
		"lib/util.py":           "def f():\n    pass\n",
		"image.png":             "\x89PNG",
		".hidden/secret.go":     "package secret\n",
		"node_modules/x/i.js":   "x()\n",
		"generated/out.go":      "package generated\n",
		"docs/notes.md":         "notes\n",
		"docs/drafts/draft.md":  "draft\n",
		".gitignore":            "generated/\n",
		"lib/__pycache__/c.txt": "cache\n",
	}, IndexerOptions{Exclude: []string{"docs/drafts/**"}})

	files, err := p.indexer.DiscoverFiles(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "lib/util.py", "docs/notes.md"}, files)

	assert.False(t, p.indexer.ShouldIndex("generated/x.go"))
	assert.False(t, p.indexer.ShouldIndex("docs/drafts/b.md"))
	assert.True(t, p.indexer.ShouldIndex("docs/b.md"))
}

func TestIndexProjectReusesAndRemoves(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, map[string]string{
		"a.go": goSource,
		"b.md": "# B\n\nbody\n",
	}, IndexerOptions{BatchSize: 2})

	var seen []string
	stats, err := p.indexer.IndexProject(ctx, func(done, total int, path string) {
		assert.Equal(t, 2, total)
		seen = append(seen, path)
	})
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.Equal(t, stats.Chunks, stats.Embedded)
	firstCalls := p.embedder.calls
	assert.Equal(t, stats.Chunks, firstCalls)

	// nothing changed: every embedding is reused
	stats, err = p.indexer.IndexProject(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, stats.Reused)
	assert.Equal(t, firstCalls, p.embedder.calls)

	require.NoError(t, os.Remove(filepath.Join(p.root, "b.md")))
	stats, err = p.indexer.IndexProject(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	files, err := p.idx.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, files)

	model, err := p.idx.Meta(ctx, "model")
	require.NoError(t, err)
	assert.Equal(t, "fake", model)
}

func TestUpdateAndRemoveFile(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, map[string]string{"a.go": goSource}, IndexerOptions{})
	_, err := p.indexer.IndexProject(ctx, nil)
	require.NoError(t, err)
	before, _ := p.idx.Count(ctx)

	writeFile(t, p.root, "a.go", strings.Replace(goSource, "return 42", "return 43", 1))
	calls := p.embedder.calls
	stats, err := p.indexer.UpdateFile(ctx, filepath.Join(p.root, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.embedder.calls-calls, "only the changed chunk is embedded again")
	assert.Equal(t, before-1, stats.Reused)

	after, _ := p.idx.Count(ctx)
	assert.Equal(t, before, after)

	writeFile(t, p.root, "new.py", "def g():\n    return 1\n")
	_, err = p.indexer.UpdateFile(ctx, "new.py")
	require.NoError(t, err)
	files, _ := p.idx.Files(ctx)
	assert.Equal(t, []string{"a.go", "new.py"}, files)

	require.NoError(t, os.Remove(filepath.Join(p.root, "new.py")))
	stats, err = p.indexer.UpdateFile(ctx, "new.py")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	n, err := p.indexer.RemoveFile(ctx, filepath.Join(p.root, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, after, n)

	_, err = p.indexer.RemoveFile(ctx, "/somewhere/else.go")
	assert.Error(t, err)
}

func TestIndexerClearsOnModelChange(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, map[string]string{"a.go": goSource}, IndexerOptions{})
	require.NoError(t, p.idx.SetMeta(ctx, "model", "older-model"))
	_, err := p.idx.Add(ctx, []Chunk{chunkAt("stale.go", 1, "x")}, [][]float32{{1, 2, 3}})
	require.NoError(t, err)

	_, err = p.indexer.IndexProject(ctx, nil)
	require.NoError(t, err)

	files, _ := p.idx.Files(ctx)
	assert.Equal(t, []string{"a.go"}, files)
	assert.Equal(t, 64, p.idx.Dimension())
}
