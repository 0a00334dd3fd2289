package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestTopResultsKeepsBestInOrder(t *testing.T) {
	top := &topResults{k: 3}
	for i, s := range []float32{0.2, 0.9, 0.5, 0.9, 0.1, 0.7} {
		top.add(SearchResult{Chunk: Chunk{StartLine: i}, Score: s})
	}

	var got []int
	for _, r := range top.items {
		got = append(got, r.Chunk.StartLine)
	}
	assert.Equal(t, []int{1, 3, 5}, got)

	empty := &topResults{k: 0}
	empty.add(SearchResult{Score: 1})
	assert.Empty(t, empty.items)
}
