package semantic

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when they differ in length or either has zero norm.
func CosineSimilarity(a, b []float32) float32 {
	return newQuery(a).score(b)
}

// query caches the norm of a search vector across many comparisons.
type query struct {
	vec  []float32
	norm float64
}

func newQuery(vec []float32) query {
	return query{vec: vec, norm: norm(vec)}
}

func (q query) score(v []float32) float32 {
	if len(v) != len(q.vec) || q.norm == 0 {
		return 0
	}
	n := norm(v)
	if n == 0 {
		return 0
	}
	var dot float64
	for i, x := range q.vec {
		dot += float64(x) * float64(v[i])
	}
	return float32(dot / (q.norm * n))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// SearchResult is a stored chunk with its similarity to the query.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// topResults keeps the k best results seen so far, best first. Ties keep
// insertion order.
type topResults struct {
	k     int
	items []SearchResult
}

func (t *topResults) add(r SearchResult) {
	n := len(t.items)
	if n == t.k && (n == 0 || r.Score <= t.items[n-1].Score) {
		return
	}
	i := sort.Search(n, func(i int) bool { return t.items[i].Score < r.Score })
	if n < t.k {
		t.items = append(t.items, SearchResult{})
	}
	copy(t.items[i+1:], t.items[i:len(t.items)-1])
	t.items[i] = r
}
