package vector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
)

const (
	ChunkEmbeddingsFile = "chunk_embeddings.bin"
	// ChunkHashKey is the meta row holding the cache key of the stored chunks.
	ChunkHashKey = "chunk_catalog_hash"
)

// ChunkStore persists chunk metadata next to the chunk matrix.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, chunks []*models.Chunk) error
	ListChunks(ctx context.Context) ([]*models.Chunk, error)
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)
}

// ChunkFunc splits a movie into chunks. Movies with nothing to embed return none.
type ChunkFunc func(*models.Movie) []*models.Chunk

// ChunkedSemanticSearch embeds each chunk of each description separately and
// ranks chunks. Callers aggregate chunk hits into movies when they need
// document-level results.
type ChunkedSemanticSearch struct {
	embedder embedding.Embedder
	queries  embedding.Embedder
	index    VectorIndex
	store    ChunkStore
	chunkFn  ChunkFunc
	cacheDir string
	name     string
	chunking string
	logger   *zap.Logger

	mu     sync.RWMutex
	chunks map[string]*models.Chunk
}

// NewChunkedSemanticSearch creates a ChunkedSemanticSearch. The chunk matrix
// lives under cacheDir, chunk metadata in store.
func NewChunkedSemanticSearch(embedder embedding.Embedder, index VectorIndex, store ChunkStore, chunkFn ChunkFunc, cacheDir string, opts ...Option) *ChunkedSemanticSearch {
	o := applyOptions(embedder, opts)
	return &ChunkedSemanticSearch{
		embedder: embedder,
		queries:  embedding.NewCachedEmbedder(embedder, o.queryCacheSize),
		index:    index,
		store:    store,
		chunkFn:  chunkFn,
		cacheDir: cacheDir,
		name:     o.embedderName,
		chunking: o.chunkerName,
		logger:   o.logger,
		chunks:   make(map[string]*models.Chunk),
	}
}

// cacheKey changes whenever the stored chunks or their vectors would differ.
func (s *ChunkedSemanticSearch) cacheKey(cat *catalog.Catalog) string {
	return strings.Join([]string{
		cat.Fingerprint(),
		s.name,
		s.chunking,
		strconv.Itoa(s.embedder.Dimensions()),
	}, "|")
}

// BuildChunkEmbeddings chunks every movie, embeds the chunks and persists the
// matrix, the chunk table and the cache key.
func (s *ChunkedSemanticSearch) BuildChunkEmbeddings(ctx context.Context, cat *catalog.Catalog) error {
	start := time.Now()
	var chunks []*models.Chunk
	for _, m := range cat.Movies() {
		chunks = append(chunks, s.chunkFn(m)...)
	}
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
		ids[i] = ch.Key()
	}
	vectors, err := embedAll(ctx, s.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	matrix := &Matrix{Dimensions: s.embedder.Dimensions(), IDs: ids, Vectors: vectors}
	if err := s.install(ctx, chunks, matrix); err != nil {
		return err
	}
	if err := WriteMatrix(filepath.Join(s.cacheDir, ChunkEmbeddingsFile), matrix); err != nil {
		return err
	}
	if err := s.store.ReplaceChunks(ctx, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	if err := s.store.SetMeta(ctx, ChunkHashKey, s.cacheKey(cat)); err != nil {
		return fmt.Errorf("store chunk cache key: %w", err)
	}
	s.logger.Info("chunk embeddings built",
		zap.Int("movies", cat.Len()),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// LoadChunkEmbeddings loads the persisted chunks, failing with ErrCacheMissing
// when they are absent or stale.
func (s *ChunkedSemanticSearch) LoadChunkEmbeddings(ctx context.Context, cat *catalog.Catalog) error {
	key, err := s.store.GetMeta(ctx, ChunkHashKey)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: no chunk cache key", ErrCacheMissing)
	}
	if err != nil {
		return err
	}
	if key != s.cacheKey(cat) {
		return fmt.Errorf("%w: chunk cache key changed", ErrCacheMissing)
	}
	matrix, err := ReadMatrix(filepath.Join(s.cacheDir, ChunkEmbeddingsFile))
	if err != nil {
		return err
	}
	chunks, err := s.store.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) != matrix.Rows() {
		return fmt.Errorf("%w: %d stored chunks for %d vectors", ErrCacheMissing, len(chunks), matrix.Rows())
	}
	return s.install(ctx, chunks, matrix)
}

// LoadOrCreateChunkEmbeddings loads cached chunk embeddings or rebuilds them.
// The bool reports whether a rebuild happened.
func (s *ChunkedSemanticSearch) LoadOrCreateChunkEmbeddings(ctx context.Context, cat *catalog.Catalog) (bool, error) {
	err := s.LoadChunkEmbeddings(ctx, cat)
	if err == nil {
		s.logger.Info("chunk embeddings loaded from cache", zap.Int("chunks", s.index.Size()))
		return false, nil
	}
	if !errors.Is(err, ErrCacheMissing) {
		return false, err
	}
	s.logger.Info("chunk embedding cache unusable, rebuilding", zap.Error(err))
	return true, s.BuildChunkEmbeddings(ctx, cat)
}

func (s *ChunkedSemanticSearch) install(ctx context.Context, chunks []*models.Chunk, matrix *Matrix) error {
	byKey := make(map[string]*models.Chunk, len(chunks))
	for _, ch := range chunks {
		byKey[ch.Key()] = ch
	}
	for _, id := range matrix.IDs {
		if _, ok := byKey[id]; !ok {
			return fmt.Errorf("%w: vector %s has no chunk", ErrCacheMissing, id)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Reset()
	if err := s.index.Add(ctx, matrix.IDs, matrix.Vectors); err != nil {
		return fmt.Errorf("load chunk vectors: %w", err)
	}
	s.chunks = byKey
	return nil
}

// SearchChunks returns the limit chunks most similar to query.
func (s *ChunkedSemanticSearch) SearchChunks(ctx context.Context, query string, limit int) ([]*models.ChunkResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index.Size() == 0 {
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
	out := make([]*models.ChunkResult, 0, len(hits))
	for _, h := range hits {
		ch, ok := s.chunks[h.ID]
		if !ok {
			continue
		}
		out = append(out, &models.ChunkResult{ChunkMetadata: ch.ChunkMetadata, Content: ch.Content, Score: h.Score})
	}
	s.logger.Debug("chunk search", zap.String("query", query), zap.Int("hits", len(out)))
	return out, nil
}

// Size returns the number of loaded chunk embeddings.
func (s *ChunkedSemanticSearch) Size() int {
	return s.index.Size()
}
