package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/hyperjump/kensaku/pkg/utils"
)

// HNSW graph parameters.
const (
	DefaultHNSWM        = 16
	DefaultHNSWEfSearch = 64
)

// HNSWIndex is an approximate cosine index on a pure-Go HNSW graph.
// Vectors are L2-normalized on insert; scores are exact cosine similarities
// of the candidates the graph returns.
type HNSWIndex struct {
	dimensions int
	mu         sync.RWMutex
	graph      *hnsw.Graph[string]
}

// NewHNSWIndex creates an empty HNSW index with the given dimension.
func NewHNSWIndex(dimensions int) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &HNSWIndex{dimensions: dimensions, graph: newGraph()}, nil
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.M = DefaultHNSWM
	g.EfSearch = DefaultHNSWEfSearch
	g.Ml = 0.25
	return g
}

// Add inserts vectors; an existing id is replaced.
func (h *HNSWIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != h.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), h.dimensions)
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		vec := make([]float32, h.dimensions)
		copy(vec, vectors[i])
		utils.NormalizeL2(vec)
		h.graph.Add(hnsw.MakeNode(id, vec))
	}
	return nil
}

// Search returns up to k approximate nearest neighbours by cosine similarity.
// Ties are ordered by id.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != h.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), h.dimensions)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || h.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}
	q := make([]float32, len(query))
	copy(q, query)
	utils.NormalizeL2(q)

	nodes := h.graph.Search(q, k)
	results := make([]*VectorResult, 0, len(nodes))
	for _, n := range nodes {
		score, err := CosineSimilarity(q, n.Value)
		if err != nil {
			return nil, err
		}
		results = append(results, &VectorResult{ID: n.Key, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// Reset replaces the graph with an empty one.
func (h *HNSWIndex) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = newGraph()
}

// Size returns the number of nodes in the graph.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len()
}

// Dimensions returns the vector dimension.
func (h *HNSWIndex) Dimensions() int {
	return h.dimensions
}

// Close is a no-op for HNSWIndex.
func (h *HNSWIndex) Close() error {
	return nil
}
