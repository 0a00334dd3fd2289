package semantic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"azul/internal/logging"
)

const DefaultTopK = 5

// Retriever embeds a query and finds the most similar indexed chunks.
type Retriever struct {
	embedder Embedder
	index    *VectorIndex
	topK     int
	metrics  *Metrics
}

// NewRetriever creates a Retriever. metrics may be nil.
func NewRetriever(embedder Embedder, index *VectorIndex, topK int, metrics *Metrics) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, topK: topK, metrics: metrics}
}

// Retrieve returns up to topK chunks for query. Embedding or index failures
// are logged and yield no results.
func (r *Retriever) Retrieve(ctx context.Context, query string) []SearchResult {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	start := time.Now()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		logging.Warn("query embedding failed, continuing without context", "model", r.embedder.Model(), "error", err)
		return nil
	}

	results, err := r.index.Query(ctx, vec, r.topK)
	if err != nil {
		logging.Warn("index query failed, continuing without context", "error", err)
		return nil
	}

	if r.metrics != nil {
		r.metrics.RecordRetrieval(time.Since(start), results)
	}
	return results
}

const (
	DefaultContextWindow = 4096
	DefaultReserveTokens = 500

	// a truncated excerpt is only added when at least this many tokens are left
	minPartialTokens = 100
)

// Augmenter packs retrieved chunks into a prompt within a token budget.
type Augmenter struct {
	contextWindow int
	reserve       int
}

// NewAugmenter creates an Augmenter for a model context window, keeping
// reserve tokens free for the system prompt, history and query.
func NewAugmenter(contextWindow, reserve int) *Augmenter {
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	if reserve < 0 {
		reserve = DefaultReserveTokens
	}
	return &Augmenter{contextWindow: contextWindow, reserve: reserve}
}

func chunkHeader(c Chunk, truncated bool) string {
	if truncated {
		return fmt.Sprintf("--- Relevant Code from %s:%d (truncated) ---\n", c.FilePath, c.StartLine)
	}
	return fmt.Sprintf("--- Relevant Code from %s:%d ---\n", c.FilePath, c.StartLine)
}

// Augment prefixes query with citation-labelled excerpts of results, best
// first. Duplicate chunks and chunks whose content already appears in
// history are skipped. The last excerpt is cut line by line when it does
// not fit. With nothing to add, the bare query is returned.
func (a *Augmenter) Augment(query string, results []SearchResult, history []string) string {
	available := a.contextWindow - a.reserve
	used := 0

	seen := make(map[string]bool)
	var parts []string

	for _, r := range results {
		c := r.Chunk
		key := c.ContentHash
		if key == "" {
			key = c.Content
		}
		if seen[key] || strings.TrimSpace(c.Content) == "" || inHistory(c.Content, history) {
			continue
		}
		seen[key] = true

		formatted := chunkHeader(c, false) + c.Content + "\n"
		tokens := EstimateTokens(formatted)
		if used+tokens <= available {
			parts = append(parts, formatted)
			used += tokens
			continue
		}

		remaining := available - used
		if remaining > minPartialTokens {
			if partial := truncateChunk(c, remaining); partial != "" {
				parts = append(parts, partial)
			}
		}
		break
	}

	if len(parts) == 0 {
		return query
	}
	return strings.Join(parts, "\n") + "\nUser: " + query
}

// truncateChunk keeps as many leading lines of c as fit in budget tokens.
func truncateChunk(c Chunk, budget int) string {
	header := chunkHeader(c, true)
	used := EstimateTokens(header)

	var kept []string
	for _, line := range strings.Split(c.Content, "\n") {
		t := EstimateTokens(line + "\n")
		if used+t > budget {
			break
		}
		kept = append(kept, line)
		used += t
	}
	if len(kept) == 0 {
		return ""
	}
	return header + strings.Join(kept, "\n") + "\n"
}

func inHistory(content string, history []string) bool {
	for _, h := range history {
		if len(h) >= len(content) && strings.Contains(h, content) {
			return true
		}
	}
	return false
}
