package vector

import "fmt"

// IndexType selects a VectorIndex implementation.
type IndexType string

const (
	// IndexTypeMemory is exact brute-force search.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeHNSW is approximate search on an HNSW graph.
	IndexTypeHNSW IndexType = "hnsw"
)

// NewVectorIndex creates a vector index of the given type; "" means memory.
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		m, err := NewMemoryIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return m, nil
	case IndexTypeHNSW:
		h, err := NewHNSWIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, hnsw)", indexType)
	}
}
