package services

import (
	"sort"

	"reasongraph-engine/domain/core/valueobjects"
	"reasongraph-engine/pkg/sparse"
)

// SimilarityEntry is one neighbor in a MostSimilar result.
type SimilarityEntry struct {
	ThoughtID valueobjects.ThoughtID `json:"thought_id"`
	Score     float64                `json:"score"`
}

// SimilarityStats reports matrix occupancy and registration counts.
type SimilarityStats struct {
	RegisteredThoughts int          `json:"registered_thoughts"`
	Matrix             sparse.Stats `json:"matrix"`
}

// SimilarityMatrix tracks pairwise thought similarity over a growing
// universe of thought ids. Writes are symmetric by construction and
// sub-threshold scores are pruned by the backing sparse matrix.
type SimilarityMatrix struct {
	matrix  *sparse.Matrix
	index   map[valueobjects.ThoughtID]int
	reverse []valueobjects.ThoughtID
}

// NewSimilarityMatrix creates a matrix with the given significance
// threshold.
func NewSimilarityMatrix(initialCapacity int, threshold float64) *SimilarityMatrix {
	return &SimilarityMatrix{
		matrix: sparse.NewMatrix(initialCapacity, threshold),
		index:  make(map[valueobjects.ThoughtID]int),
	}
}

// Register assigns a dense index to the thought id on first sight and
// returns it. Re-registering is a no-op.
func (sm *SimilarityMatrix) Register(id valueobjects.ThoughtID) int {
	if idx, ok := sm.index[id]; ok {
		return idx
	}
	idx := len(sm.reverse)
	sm.index[id] = idx
	sm.reverse = append(sm.reverse, id)
	return idx
}

// Registered reports whether the id has been seen.
func (sm *SimilarityMatrix) Registered(id valueobjects.ThoughtID) bool {
	_, ok := sm.index[id]
	return ok
}

// Set writes the similarity score for a pair, symmetrically. Both ids are
// registered if new.
func (sm *SimilarityMatrix) Set(a, b valueobjects.ThoughtID, score float64) {
	if a == b {
		return
	}
	ia := sm.Register(a)
	ib := sm.Register(b)
	sm.matrix.Set(ia, ib, score)
	sm.matrix.Set(ib, ia, score)
}

// Similarity returns the stored score for a pair. The bool is false when
// the pair was never computed or the score fell below the threshold.
func (sm *SimilarityMatrix) Similarity(a, b valueobjects.ThoughtID) (float64, bool) {
	ia, okA := sm.index[a]
	ib, okB := sm.index[b]
	if !okA || !okB {
		return 0, false
	}
	return sm.matrix.Get(ia, ib)
}

// MostSimilar returns up to k materialized neighbors of the thought,
// ordered by score descending.
func (sm *SimilarityMatrix) MostSimilar(id valueobjects.ThoughtID, k int) []SimilarityEntry {
	idx, ok := sm.index[id]
	if !ok || k <= 0 {
		return nil
	}

	row := sm.matrix.Row(idx)
	entries := make([]SimilarityEntry, 0, len(row))
	for col, score := range row {
		entries = append(entries, SimilarityEntry{ThoughtID: sm.reverse[col], Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ThoughtID < entries[j].ThoughtID
	})

	if k < len(entries) {
		entries = entries[:k]
	}
	return entries
}

// Clusters finds connected components over the implicit undirected graph of
// cells >= minSimilarity, via iterative depth-first traversal. Only
// components with at least two members are returned.
func (sm *SimilarityMatrix) Clusters(minSimilarity float64) [][]valueobjects.ThoughtID {
	visited := make(map[int]bool)
	clusters := make([][]valueobjects.ThoughtID, 0)

	for start := range sm.reverse {
		if visited[start] {
			continue
		}

		component := make([]valueobjects.ThoughtID, 0)
		stack := []int{start}
		visited[start] = true

		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, sm.reverse[node])

			for col, score := range sm.matrix.Row(node) {
				if score >= minSimilarity && !visited[col] {
					visited[col] = true
					stack = append(stack, col)
				}
			}
		}

		if len(component) >= 2 {
			sort.Slice(component, func(i, j int) bool { return component[i] < component[j] })
			clusters = append(clusters, component)
		}
	}

	return clusters
}

// GetStats returns matrix occupancy and registration counts.
func (sm *SimilarityMatrix) GetStats() SimilarityStats {
	return SimilarityStats{
		RegisteredThoughts: len(sm.reverse),
		Matrix:             sm.matrix.GetStats(),
	}
}
