package search

import (
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
)

// ProcessQuery applies configured defaults to the query and validates it.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	if query.Limit <= 0 {
		query.Limit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && query.Limit > cfg.MaxLimit {
		query.Limit = cfg.MaxLimit
	}
	if query.Alpha == nil && query.Mode == models.ModeWeighted {
		alpha := cfg.Alpha()
		query.Alpha = &alpha
	}
	return query.Validate()
}
