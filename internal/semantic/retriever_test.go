package semantic

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieverFindsRelevantChunk(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, map[string]string{
		"auth.py": "def login(user, password):\n    return check_password(user, password)\n",
		"math.py": "def add(a, b):\n    return a + b\n",
	}, IndexerOptions{})
	_, err := p.indexer.IndexProject(ctx, nil)
	require.NoError(t, err)

	metrics := NewMetrics()
	r := NewRetriever(p.embedder, p.idx, 1, metrics)
	results := r.Retrieve(ctx, "where is the login password check")
	require.Len(t, results, 1)
	assert.Equal(t, "auth.py", results[0].Chunk.FilePath)

	q := metrics.LastQuery()
	assert.Equal(t, 1, q.Chunks)
	assert.Equal(t, 1, q.SourceFiles)
}

func TestRetrieverDegradesOnEmbeddingFailure(t *testing.T) {
	idx := openTestIndex(t)
	r := NewRetriever(&fakeEmbedder{dim: 4, fail: true}, idx, 5, nil)
	assert.Nil(t, r.Retrieve(context.Background(), "anything"))
	assert.Nil(t, r.Retrieve(context.Background(), "   "))
}

func result(path string, start int, content string) SearchResult {
	return SearchResult{Chunk: newChunk(path, start, start+strings.Count(content, "\n"), "go", ChunkFunction, content)}
}

func TestAugmentFormatsAndDeduplicates(t *testing.T) {
	a := NewAugmenter(4096, 500)
	results := []SearchResult{
		result("a.go", 10, "func A() {}"),
		result("a.go", 10, "func A() {}"),
		result("b.go", 3, "func B() {}"),
	}

	out := a.Augment("fix B", results, nil)
	assert.Equal(t,
		"--- Relevant Code from a.go:10 ---\nfunc A() {}\n\n"+
			"--- Relevant Code from b.go:3 ---\nfunc B() {}\n\n"+
			"User: fix B", out)
}

func TestAugmentSkipsContentAlreadyInHistory(t *testing.T) {
	a := NewAugmenter(4096, 500)
	results := []SearchResult{result("a.go", 1, "func A() {}")}
	history := []string{"Tool Output:\nContent of a.go (1 lines):\nfunc A() {}"}
	assert.Equal(t, "q", a.Augment("q", results, history))
}

func TestAugmentTruncatesLastChunk(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "\tcallSomething(withAnArgument)")
	}
	big := strings.Join(lines, "\n")
	small := "func Small() {}"

	// 400 tokens of budget: the small chunk fits, the big one is cut
	a := NewAugmenter(900, 500)
	out := a.Augment("q", []SearchResult{result("s.go", 1, small), result("big.go", 5, big)}, nil)

	assert.Contains(t, out, "--- Relevant Code from s.go:1 ---\nfunc Small() {}\n")
	assert.Contains(t, out, "--- Relevant Code from big.go:5 (truncated) ---\n")
	assert.True(t, strings.HasSuffix(out, "\nUser: q"))
	assert.LessOrEqual(t, EstimateTokens(out), 400+EstimateTokens("\nUser: q")+2)
	assert.Less(t, strings.Count(out, "callSomething"), 200)
}

func TestAugmentFallsBackToBareQuery(t *testing.T) {
	assert.Equal(t, "q", NewAugmenter(4096, 500).Augment("q", nil, nil))

	// budget too small for even a truncated excerpt
	a := NewAugmenter(550, 500)
	assert.Equal(t, "q", a.Augment("q", []SearchResult{result("a.go", 1, strings.Repeat("x", 400))}, nil))
}

func TestMetricsSummary(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, "No metrics recorded yet.\n", m.Summary())

	m.RecordIndex(IndexMetrics{Duration: time.Second, Files: 3, Chunks: 10, Embedded: 9, Failed: 1})
	m.RecordRetrieval(20*time.Millisecond, []SearchResult{result("a.go", 1, "x"), result("a.go", 5, "y")})
	m.RecordGeneration(300*time.Millisecond, 2*time.Second, 100)

	q := m.LastQuery()
	assert.Equal(t, 2, q.Chunks)
	assert.Equal(t, 1, q.SourceFiles)
	assert.InDelta(t, 50.0, q.TokensPerSecond(), 0.001)

	s := m.Summary()
	assert.Contains(t, s, "Last index: 3 files, 10 chunks (9 embedded, 1 failed)")
	assert.Contains(t, s, "Last query: 2 chunks from 1 files")
	assert.Contains(t, s, "100 output tokens (50.0 tok/s)")
}
