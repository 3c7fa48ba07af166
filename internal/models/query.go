package models

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is returned by Validate for malformed search requests.
var ErrInvalidQuery = errors.New("invalid query")

// SearchMode selects which ranker answers a query.
type SearchMode string

const (
	ModeLexical  SearchMode = "lexical"
	ModeSemantic SearchMode = "semantic"
	ModeHybrid   SearchMode = "hybrid"
	ModeWeighted SearchMode = "weighted"
)

// SearchQuery represents a search request.
type SearchQuery struct {
	Query string     `json:"query"`
	Limit int        `json:"limit,omitempty"`
	Mode  SearchMode `json:"mode,omitempty"`
	// Alpha weights the lexical side in weighted mode; nil means the configured default.
	Alpha *float64 `json:"alpha,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty or the mode is unknown; otherwise
// normalizes limit (default 5, capped at 100) and mode (default hybrid).
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	switch q.Mode {
	case "":
		q.Mode = ModeHybrid
	case ModeLexical, ModeSemantic, ModeHybrid, ModeWeighted:
	default:
		return fmt.Errorf("%w: unknown search mode %q", ErrInvalidQuery, q.Mode)
	}
	if q.Alpha != nil && (*q.Alpha < 0 || *q.Alpha > 1) {
		return fmt.Errorf("%w: alpha must be within [0, 1], got %v", ErrInvalidQuery, *q.Alpha)
	}
	return nil
}
