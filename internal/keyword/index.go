// Package keyword provides lexical (BM25) indexing and search over the movie catalog.
package keyword

import (
	"context"
	"errors"

	"github.com/hyperjump/kensaku/internal/models"
)

var (
	// ErrInvalidTerm is returned when a single-token primitive receives a term
	// that tokenizes to zero or several tokens.
	ErrInvalidTerm = errors.New("term must tokenize to exactly one token")
	// ErrCacheMissing is returned by Load when any index artifact is absent.
	ErrCacheMissing = errors.New("keyword index cache missing; build the index first")
	// ErrIndexClosed is returned when a closed index is queried.
	ErrIndexClosed = errors.New("keyword index is closed")
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// KeywordIndex is a ranked lexical search over the catalog.
type KeywordIndex interface {
	Build(ctx context.Context, movies []*models.Movie) error
	Search(ctx context.Context, query string, limit int) ([]*models.RankedResult, error)
	DocCount() int
	// CatalogHash returns the catalog fingerprint the index was built from,
	// or "" when unknown.
	CatalogHash() string
	Close() error
}

// TermDictionary provides access to the term dictionary for spell checking.
type TermDictionary interface {
	// GetAllTerms returns all unique terms in the index.
	GetAllTerms() ([]string, error)
	// GetTermFrequency returns the document frequency for a term.
	GetTermFrequency(term string) (int, error)
	// ContainsTerm checks if a term exists in the index.
	ContainsTerm(term string) (bool, error)
}
