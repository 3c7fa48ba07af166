// Package vector provides cosine-similarity search over movie and chunk
// embeddings, with a content-hash keyed on-disk cache.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned by Search before embeddings are built or loaded.
	ErrNotReady = errors.New("vector index not ready; build or load embeddings first")
	// ErrDimensionMismatch is returned when two vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCacheMissing is returned when a cached matrix or manifest is absent or stale.
	ErrCacheMissing = errors.New("embedding cache missing or stale")
)

// VectorIndex stores id-labelled vectors and returns the nearest by cosine similarity.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Reset()
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}
