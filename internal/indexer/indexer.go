// Package indexer chunks movie text and builds the keyword and vector indices
// from the catalog.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/vector"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// persistentIndex is a keyword index with an explicit on-disk cache.
type persistentIndex interface {
	Save() error
	Load() error
}

// BuildStats summarises one Build or Load run.
type BuildStats struct {
	BuildID  string
	Movies   int
	Chunks   int
	Rebuilt  bool
	Duration time.Duration
}

// Indexer builds every index from one catalog under a cross-process lock.
type Indexer struct {
	keyword  keyword.KeywordIndex
	semantic *vector.SemanticSearch
	chunked  *vector.ChunkedSemanticSearch
	lock     *FileLock
	logger   *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithChunked enables chunk-level embeddings alongside movie embeddings.
func WithChunked(c *vector.ChunkedSemanticSearch) IndexerOption {
	return func(idx *Indexer) { idx.chunked = c }
}

// NewIndexer creates an indexer. The build lock lives in cacheDir.
func NewIndexer(kw keyword.KeywordIndex, semantic *vector.SemanticSearch, cacheDir string, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		keyword:  kw,
		semantic: semantic,
		lock:     NewFileLock(cacheDir),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.LoggerOrNop(idx.logger)
	return idx
}

// Build rebuilds every index from cat and replaces all cached artifacts.
func (idx *Indexer) Build(ctx context.Context, cat *catalog.Catalog) (*BuildStats, error) {
	stats := &BuildStats{BuildID: uuid.NewString(), Movies: cat.Len(), Rebuilt: true}
	log := idx.logger.With(zap.String("build_id", stats.BuildID))
	start := time.Now()

	if err := idx.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = idx.lock.Unlock() }()

	log.Info("index build started", zap.Int("movies", cat.Len()))
	if err := idx.buildKeyword(ctx, cat); err != nil {
		return nil, err
	}
	if err := idx.semantic.BuildEmbeddings(ctx, cat); err != nil {
		return nil, fmt.Errorf("build embeddings: %w", err)
	}
	if idx.chunked != nil {
		if err := idx.chunked.BuildChunkEmbeddings(ctx, cat); err != nil {
			return nil, fmt.Errorf("build chunk embeddings: %w", err)
		}
		stats.Chunks = idx.chunked.Size()
	}
	stats.Duration = time.Since(start)
	log.Info("index build finished",
		zap.Int("chunks", stats.Chunks),
		zap.Duration("took", stats.Duration))
	return stats, nil
}

func (idx *Indexer) buildKeyword(ctx context.Context, cat *catalog.Catalog) error {
	if err := idx.keyword.Build(ctx, cat.Movies()); err != nil {
		return fmt.Errorf("build keyword index: %w", err)
	}
	if p, ok := idx.keyword.(persistentIndex); ok {
		if err := p.Save(); err != nil {
			return fmt.Errorf("save keyword index: %w", err)
		}
	}
	return nil
}

// Load warms every index from its cache, building only the parts whose cache
// is missing or stale.
func (idx *Indexer) Load(ctx context.Context, cat *catalog.Catalog) (*BuildStats, error) {
	stats := &BuildStats{BuildID: uuid.NewString(), Movies: cat.Len()}
	log := idx.logger.With(zap.String("build_id", stats.BuildID))
	start := time.Now()

	if err := idx.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = idx.lock.Unlock() }()

	rebuilt, err := idx.loadKeyword(ctx, cat)
	if err != nil {
		return nil, err
	}
	stats.Rebuilt = rebuilt

	rebuilt, err = idx.semantic.LoadOrCreateEmbeddings(ctx, cat)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	stats.Rebuilt = stats.Rebuilt || rebuilt

	if idx.chunked != nil {
		rebuilt, err = idx.chunked.LoadOrCreateChunkEmbeddings(ctx, cat)
		if err != nil {
			return nil, fmt.Errorf("load chunk embeddings: %w", err)
		}
		stats.Rebuilt = stats.Rebuilt || rebuilt
		stats.Chunks = idx.chunked.Size()
	}
	stats.Duration = time.Since(start)
	log.Info("indices ready",
		zap.Bool("rebuilt", stats.Rebuilt),
		zap.Duration("took", stats.Duration))
	return stats, nil
}

func (idx *Indexer) loadKeyword(ctx context.Context, cat *catalog.Catalog) (bool, error) {
	want := cat.Fingerprint()
	p, ok := idx.keyword.(persistentIndex)
	if !ok {
		// self-persisting backends such as Bleve keep their own fingerprint
		if idx.keyword.CatalogHash() == want {
			return false, nil
		}
		idx.logger.Info("keyword index is stale, rebuilding",
			zap.String("catalog_hash", want))
		return true, idx.buildKeyword(ctx, cat)
	}
	err := p.Load()
	if err == nil && idx.keyword.CatalogHash() == want {
		return false, nil
	}
	if err != nil && !errors.Is(err, keyword.ErrCacheMissing) {
		return false, fmt.Errorf("load keyword index: %w", err)
	}
	idx.logger.Info("keyword cache unusable, rebuilding",
		zap.String("catalog_hash", want),
		zap.Error(err))
	return true, idx.buildKeyword(ctx, cat)
}
