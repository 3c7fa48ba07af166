// Package embedding maps text to dense vectors. Providers are swappable
// behind Embedder; query-side calls go through an LRU cache.
package embedding

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyInput is returned when blank text is passed to an embedder.
var ErrEmptyInput = errors.New("text must not be empty or whitespace")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ValidateText returns ErrEmptyInput for empty or all-whitespace text.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	return nil
}

func validateBatch(texts []string) error {
	for _, t := range texts {
		if err := ValidateText(t); err != nil {
			return err
		}
	}
	return nil
}
