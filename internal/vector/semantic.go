package vector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// Cache artifact names inside the cache directory.
const (
	EmbeddingsFile = "embeddings.bin"
	ManifestFile   = "embeddings.json"
)

// embedBatchSize bounds the number of texts sent to the provider per call.
const embedBatchSize = 64

// Option configures SemanticSearch and ChunkedSemanticSearch.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	queryCacheSize int
	embedderName   string
	chunkerName    string
}

// WithLogger sets a logger for build and cache events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithQueryCacheSize sets how many query embeddings are memoized.
func WithQueryCacheSize(n int) Option {
	return func(o *options) { o.queryCacheSize = n }
}

// WithEmbedderName records the provider and model in cache keys. Without it
// the embedder's Go type is used.
func WithEmbedderName(name string) Option {
	return func(o *options) { o.embedderName = name }
}

// WithChunkerName records the chunking settings in the chunk cache key.
func WithChunkerName(name string) Option {
	return func(o *options) { o.chunkerName = name }
}

func applyOptions(embedder embedding.Embedder, opts []Option) options {
	o := options{queryCacheSize: embedding.DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = utils.LoggerOrNop(o.logger)
	if o.embedderName == "" {
		o.embedderName = fmt.Sprintf("%T", embedder)
	}
	return o
}

// SemanticSearch ranks movies by cosine similarity between the query
// embedding and one embedding of "title: description" per movie.
type SemanticSearch struct {
	embedder embedding.Embedder
	queries  embedding.Embedder
	index    VectorIndex
	cacheDir string
	name     string
	logger   *zap.Logger

	mu     sync.RWMutex
	movies map[string]*models.Movie
}

// NewSemanticSearch creates a SemanticSearch storing its matrix under cacheDir.
func NewSemanticSearch(embedder embedding.Embedder, index VectorIndex, cacheDir string, opts ...Option) *SemanticSearch {
	o := applyOptions(embedder, opts)
	return &SemanticSearch{
		embedder: embedder,
		queries:  embedding.NewCachedEmbedder(embedder, o.queryCacheSize),
		index:    index,
		cacheDir: cacheDir,
		name:     o.embedderName,
		logger:   o.logger,
		movies:   make(map[string]*models.Movie),
	}
}

// GenerateEmbedding embeds a single text. Blank text fails with embedding.ErrEmptyInput.
func (s *SemanticSearch) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateText(text); err != nil {
		return nil, err
	}
	return s.embedder.Embed(ctx, text)
}

// BuildEmbeddings embeds every movie, loads the vectors into the index and
// persists the matrix with a manifest keyed by the catalog fingerprint.
func (s *SemanticSearch) BuildEmbeddings(ctx context.Context, cat *catalog.Catalog) error {
	start := time.Now()
	movies := cat.Movies()
	texts := make([]string, len(movies))
	ids := make([]string, len(movies))
	for i, m := range movies {
		texts[i] = m.EmbeddingText()
		ids[i] = movieKey(m.ID)
	}
	vectors, err := embedAll(ctx, s.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed movies: %w", err)
	}
	matrix := &Matrix{Dimensions: s.embedder.Dimensions(), IDs: ids, Vectors: vectors}
	if err := s.install(ctx, cat, matrix); err != nil {
		return err
	}
	if err := WriteMatrix(filepath.Join(s.cacheDir, EmbeddingsFile), matrix); err != nil {
		return err
	}
	manifest := &Manifest{
		CatalogHash: cat.Fingerprint(),
		Embedder:    s.name,
		Rows:        matrix.Rows(),
		Dimensions:  matrix.Dimensions,
	}
	if err := WriteManifest(filepath.Join(s.cacheDir, ManifestFile), manifest); err != nil {
		return err
	}
	s.logger.Info("movie embeddings built",
		zap.Int("rows", matrix.Rows()),
		zap.Int("dimensions", matrix.Dimensions),
		zap.Duration("took", time.Since(start)))
	return nil
}

// LoadEmbeddings loads the cached matrix. It fails with ErrCacheMissing when
// the cache is absent or was built from a different catalog or embedder.
func (s *SemanticSearch) LoadEmbeddings(ctx context.Context, cat *catalog.Catalog) error {
	manifest, err := ReadManifest(filepath.Join(s.cacheDir, ManifestFile))
	if err != nil {
		return err
	}
	if !manifest.Matches(cat.Fingerprint(), s.name, cat.Len(), s.embedder.Dimensions()) {
		return fmt.Errorf("%w: catalog or embedder changed", ErrCacheMissing)
	}
	matrix, err := ReadMatrix(filepath.Join(s.cacheDir, EmbeddingsFile))
	if err != nil {
		return err
	}
	if matrix.Rows() != manifest.Rows || matrix.Dimensions != manifest.Dimensions {
		return fmt.Errorf("%w: matrix does not match manifest", ErrCacheMissing)
	}
	return s.install(ctx, cat, matrix)
}

// LoadOrCreateEmbeddings loads the cache when it matches the catalog and
// otherwise rebuilds it. The bool reports whether a rebuild happened.
func (s *SemanticSearch) LoadOrCreateEmbeddings(ctx context.Context, cat *catalog.Catalog) (bool, error) {
	err := s.LoadEmbeddings(ctx, cat)
	if err == nil {
		s.logger.Info("movie embeddings loaded from cache", zap.Int("rows", s.index.Size()))
		return false, nil
	}
	if !errors.Is(err, ErrCacheMissing) {
		return false, err
	}
	s.logger.Info("movie embedding cache unusable, rebuilding", zap.Error(err))
	return true, s.BuildEmbeddings(ctx, cat)
}

func (s *SemanticSearch) install(ctx context.Context, cat *catalog.Catalog, matrix *Matrix) error {
	movies := make(map[string]*models.Movie, matrix.Rows())
	for _, id := range matrix.IDs {
		n, err := strconv.Atoi(id)
		if err != nil {
			return fmt.Errorf("%w: bad row id %q", ErrCacheMissing, id)
		}
		m, ok := cat.Get(n)
		if !ok {
			return fmt.Errorf("%w: movie %d not in catalog", ErrCacheMissing, n)
		}
		movies[id] = m
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Reset()
	if err := s.index.Add(ctx, matrix.IDs, matrix.Vectors); err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	s.movies = movies
	return nil
}

// Search embeds query and returns the limit most similar movies with cosine
// similarity as the score. It fails with ErrNotReady before embeddings are loaded.
func (s *SemanticSearch) Search(ctx context.Context, query string, limit int) ([]*models.RankedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index.Size() == 0 || len(s.movies) == 0 {
		return nil, ErrNotReady
	}
	q, err := s.queries.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*models.RankedResult, 0, len(hits))
	for _, h := range hits {
		m, ok := s.movies[h.ID]
		if !ok {
			continue
		}
		out = append(out, &models.RankedResult{Movie: m, Score: h.Score})
	}
	s.logger.Debug("semantic search", zap.String("query", query), zap.Int("hits", len(out)))
	return out, nil
}

// Size returns the number of loaded movie embeddings.
func (s *SemanticSearch) Size() int {
	return s.index.Size()
}

func movieKey(id int) string {
	return strconv.Itoa(id)
}

// embedAll embeds texts in provider-sized batches, preserving order.
func embedAll(ctx context.Context, e embedding.Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}
