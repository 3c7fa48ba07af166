package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/vector"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// Engine answers lexical, semantic and hybrid queries over one catalog.
type Engine struct {
	keyword  keyword.KeywordIndex
	semantic *vector.SemanticSearch
	chunked  *vector.ChunkedSemanticSearch
	spell    *keyword.SpellChecker
	config   *config.SearchConfig
	logger   *zap.Logger

	mu      sync.RWMutex
	catalog *catalog.Catalog
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for per-query debug events.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithChunked answers semantic queries from chunk embeddings, keeping each
// movie's best chunk.
func WithChunked(c *vector.ChunkedSemanticSearch) EngineOption {
	return func(e *Engine) { e.chunked = c }
}

// WithSpellChecker enables "did you mean" suggestions for queries with no lexical hits.
func WithSpellChecker(s *keyword.SpellChecker) EngineOption {
	return func(e *Engine) { e.spell = s }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(cat *catalog.Catalog, kw keyword.KeywordIndex, semantic *vector.SemanticSearch, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:  cat,
		keyword:  kw,
		semantic: semantic,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.LoggerOrNop(e.logger)
	return e
}

// SetCatalog swaps the catalog after a rebuild and refreshes the spelling dictionary.
func (e *Engine) SetCatalog(cat *catalog.Catalog) error {
	e.mu.Lock()
	e.catalog = cat
	e.mu.Unlock()
	if e.spell != nil {
		return e.spell.Refresh()
	}
	return nil
}

// Movie returns a catalog movie by id.
func (e *Engine) Movie(id int) (*models.Movie, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.Get(id)
}

// Status describes the loaded indices.
type Status struct {
	Movies          int  `json:"movies"`
	KeywordDocs     int  `json:"keyword_documents"`
	Embeddings      int  `json:"embeddings"`
	ChunkEmbeddings int  `json:"chunk_embeddings"`
	Chunked         bool `json:"chunked"`
}

// Status reports index sizes.
func (e *Engine) Status() Status {
	e.mu.RLock()
	movies := e.catalog.Len()
	e.mu.RUnlock()
	st := Status{
		Movies:      movies,
		KeywordDocs: e.keyword.DocCount(),
		Embeddings:  e.semantic.Size(),
		Chunked:     e.chunked != nil,
	}
	if e.chunked != nil {
		st.ChunkEmbeddings = e.chunked.Size()
	}
	return st
}

// LexicalSearch ranks movies by BM25.
func (e *Engine) LexicalSearch(ctx context.Context, query string, limit int) ([]*models.RankedResult, error) {
	return e.keyword.Search(ctx, query, limit)
}

// SemanticSearch ranks movies by cosine similarity. With chunk embeddings
// enabled a movie scores its best chunk.
func (e *Engine) SemanticSearch(ctx context.Context, query string, limit int) ([]*models.RankedResult, error) {
	if e.chunked == nil {
		return e.semantic.Search(ctx, query, limit)
	}
	if limit <= 0 {
		return []*models.RankedResult{}, nil
	}
	// several chunks of one movie may crowd the top hits
	hits, err := e.chunked.SearchChunks(ctx, query, limit*e.multiplier())
	if err != nil {
		return nil, err
	}
	matches := AggregateChunks(hits, limit)
	out := make([]*models.RankedResult, 0, len(matches))
	for _, m := range matches {
		movie, ok := e.Movie(m.MovieID)
		if !ok {
			continue
		}
		out = append(out, &models.RankedResult{Movie: movie, Score: m.Score})
	}
	return out, nil
}

// candidates runs both rankers concurrently, each returning
// limit*candidate_multiplier hits.
func (e *Engine) candidates(ctx context.Context, query string, limit int) (lexical, semantic []*models.RankedResult, err error) {
	n := limit * e.multiplier()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.LexicalSearch(gctx, query, n)
		if err != nil {
			return fmt.Errorf("lexical search failed: %w", err)
		}
		lexical = r
		return nil
	})
	g.Go(func() error {
		r, err := e.SemanticSearch(gctx, query, n)
		if err != nil {
			return fmt.Errorf("semantic search failed: %w", err)
		}
		semantic = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return lexical, semantic, nil
}

// HybridSearch fuses lexical and semantic rankings with reciprocal rank fusion.
func (e *Engine) HybridSearch(ctx context.Context, query string, limit int) ([]*models.RankedResult, error) {
	if limit <= 0 {
		return []*models.RankedResult{}, nil
	}
	lexical, semantic, err := e.candidates(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return Fuse(lexical, semantic, limit, e.config.RRFK), nil
}

// WeightedSearch blends min-max normalised scores, alpha weighting the lexical side.
func (e *Engine) WeightedSearch(ctx context.Context, query string, alpha float64, limit int) ([]*models.RankedResult, error) {
	if limit <= 0 {
		return []*models.RankedResult{}, nil
	}
	lexical, semantic, err := e.candidates(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return WeightedFuse(lexical, semantic, alpha, limit), nil
}

func (e *Engine) multiplier() int {
	if e.config.CandidateMultiplier > 0 {
		return e.config.CandidateMultiplier
	}
	return 1
}

// Search validates query, dispatches on its mode and returns ranked results.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, err
	}

	var (
		results []*models.RankedResult
		err     error
	)
	switch query.Mode {
	case models.ModeLexical:
		results, err = e.LexicalSearch(ctx, query.Query, query.Limit)
		for i, r := range results {
			r.KeywordRank = i + 1
		}
	case models.ModeSemantic:
		results, err = e.SemanticSearch(ctx, query.Query, query.Limit)
		for i, r := range results {
			r.SemanticRank = i + 1
		}
	case models.ModeWeighted:
		results, err = e.WeightedSearch(ctx, query.Query, *query.Alpha, query.Limit)
	default:
		results, err = e.HybridSearch(ctx, query.Query, query.Limit)
	}
	if err != nil {
		return nil, err
	}

	response := &models.SearchResponse{
		Results: make([]*models.SearchResult, len(results)),
		Total:   len(results),
		Query:   query.Query,
		Mode:    query.Mode,
	}
	for i, r := range results {
		response.Results[i] = &models.SearchResult{RankedResult: r, Rank: i + 1}
	}
	if query.Mode != models.ModeSemantic && !hasLexicalHit(results) {
		response.Suggestions = e.suggest(query.Query)
	}
	response.QueryTime = time.Since(startTime).Milliseconds()
	e.logger.Debug("search",
		zap.String("query", query.Query),
		zap.String("mode", string(query.Mode)),
		zap.Int("results", len(results)),
		zap.Int64("took_ms", response.QueryTime))
	return response, nil
}

func hasLexicalHit(results []*models.RankedResult) bool {
	for _, r := range results {
		if r.KeywordRank > 0 {
			return true
		}
	}
	return false
}

func (e *Engine) suggest(query string) []string {
	if e.spell == nil {
		return nil
	}
	corrected, changed, err := e.spell.Correct(query)
	if err != nil {
		e.logger.Debug("spell check failed", zap.Error(err))
		return nil
	}
	if !changed {
		return nil
	}
	return []string{corrected}
}
