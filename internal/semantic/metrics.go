package semantic

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"azul/internal/logging"
)

// QueryMetrics describes the last retrieval-augmented generation.
type QueryMetrics struct {
	RetrievalTime  time.Duration
	Chunks         int
	SourceFiles    int
	TTFT           time.Duration // time to first token
	GenerationTime time.Duration
	OutputTokens   int
}

// TokensPerSecond returns the generation throughput, 0 when unknown.
func (q QueryMetrics) TokensPerSecond() float64 {
	if q.GenerationTime <= 0 || q.OutputTokens == 0 {
		return 0
	}
	return float64(q.OutputTokens) / q.GenerationTime.Seconds()
}

// IndexMetrics describes the last indexing run.
type IndexMetrics struct {
	Duration  time.Duration
	Files     int
	Chunks    int
	Embedded  int
	Failed    int
	IndexSize int64
}

// Metrics collects RAG pipeline measurements. Safe for concurrent use.
type Metrics struct {
	mu        sync.RWMutex
	query     QueryMetrics
	index     IndexMetrics
	queries   int
	retrieval time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRetrieval records one retrieval and starts a new query record.
func (m *Metrics) RecordRetrieval(d time.Duration, results []SearchResult) {
	files := make(map[string]struct{})
	for _, r := range results {
		files[r.Chunk.FilePath] = struct{}{}
	}

	m.mu.Lock()
	m.query = QueryMetrics{RetrievalTime: d, Chunks: len(results), SourceFiles: len(files)}
	m.queries++
	m.retrieval += d
	m.mu.Unlock()

	logging.Debug("retrieval", "duration", d, "chunks", len(results), "files", len(files))
}

// RecordGeneration adds generation timings to the current query record.
func (m *Metrics) RecordGeneration(ttft, total time.Duration, outputTokens int) {
	m.mu.Lock()
	m.query.TTFT = ttft
	m.query.GenerationTime = total
	m.query.OutputTokens = outputTokens
	q := m.query
	m.mu.Unlock()

	logging.Debug("generation", "ttft", ttft, "duration", total, "output_tokens", outputTokens,
		"tokens_per_second", q.TokensPerSecond())
}

// RecordIndex stores the result of an indexing run.
func (m *Metrics) RecordIndex(im IndexMetrics) {
	m.mu.Lock()
	m.index = im
	m.mu.Unlock()
}

func (m *Metrics) LastQuery() QueryMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.query
}

// Summary renders the metrics for display.
func (m *Metrics) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sb strings.Builder
	if m.index.Files > 0 || m.index.Duration > 0 {
		fmt.Fprintf(&sb, "Last index: %d files, %d chunks (%d embedded, %d failed) in %s, %.1f MB\n",
			m.index.Files, m.index.Chunks, m.index.Embedded, m.index.Failed,
			m.index.Duration.Round(time.Millisecond), float64(m.index.IndexSize)/1024/1024)
	}
	if m.queries > 0 {
		avg := m.retrieval / time.Duration(m.queries)
		fmt.Fprintf(&sb, "Queries: %d (avg retrieval %s)\n", m.queries, avg.Round(time.Millisecond))
		q := m.query
		fmt.Fprintf(&sb, "Last query: %d chunks from %d files, retrieval %s",
			q.Chunks, q.SourceFiles, q.RetrievalTime.Round(time.Millisecond))
		if q.TTFT > 0 {
			fmt.Fprintf(&sb, ", first token %s", q.TTFT.Round(time.Millisecond))
		}
		if q.OutputTokens > 0 {
			fmt.Fprintf(&sb, ", %d output tokens (%.1f tok/s)", q.OutputTokens, q.TokensPerSecond())
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "No metrics recorded yet.\n"
	}
	return sb.String()
}
