package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Tokenizer *keyword.Tokenizer
	Embedder  embedding.Embedder
	Keyword   keyword.KeywordIndex
	Semantic  *vector.SemanticSearch
	Chunked   *vector.ChunkedSemanticSearch
	Storage   *storage.SQLiteStorage
	Indexer   *indexer.Indexer
	Engine    *search.Engine

	vectorIndexes []vector.VectorIndex
	rebuildMu     sync.Mutex

	catalogMu sync.RWMutex
	cat       *catalog.Catalog
}

// Catalog returns the catalog the indexes were last built from. It is safe
// to call while a rebuild is running.
func (c *Components) Catalog() *catalog.Catalog {
	c.catalogMu.RLock()
	defer c.catalogMu.RUnlock()
	return c.cat
}

func (c *Components) setCatalog(cat *catalog.Catalog) {
	c.catalogMu.Lock()
	c.cat = cat
	c.catalogMu.Unlock()
}

func newTokenizer(cfg *config.Config) (*keyword.Tokenizer, error) {
	if cfg.Storage.StopWordsPath == "" {
		return keyword.NewDefaultTokenizer(), nil
	}
	words, err := keyword.LoadStopWords(cfg.Storage.StopWordsPath)
	if err != nil {
		return nil, err
	}
	return keyword.NewTokenizer(words), nil
}

func embeddingSettings(cfg *config.Config) embedding.Settings {
	return embedding.Settings{
		Provider:   cfg.Embedding.Provider,
		ModelPath:  cfg.Embedding.ModelPath,
		Model:      cfg.Embedding.Model,
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	return embedding.New(embeddingSettings(cfg))
}

func newKeywordIndex(cfg *config.Config, tok *keyword.Tokenizer, logger *zap.Logger) (keyword.KeywordIndex, error) {
	if cfg.Search.KeywordBackend == "bleve" {
		idx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
	return keyword.NewInvertedIndex(tok, cfg.Storage.CacheDir,
		keyword.WithLogger(logger),
		keyword.WithBM25Params(cfg.Search.BM25K1, cfg.Search.BM25B),
	), nil
}

// initializeComponents wires every index for cfg without loading or building them.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	cat, err := catalog.Load(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	c.setCatalog(cat)

	if c.Tokenizer, err = newTokenizer(cfg); err != nil {
		return nil, err
	}
	if c.Embedder, err = newEmbedder(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if c.Keyword, err = newKeywordIndex(cfg, c.Tokenizer, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	vopts := []vector.Option{
		vector.WithLogger(logger),
		vector.WithQueryCacheSize(cfg.Embedding.CacheSize),
		vector.WithEmbedderName(embeddingSettings(cfg).Name()),
	}
	movieIndex, err := c.newVectorIndex()
	if err != nil {
		return nil, err
	}
	c.Semantic = vector.NewSemanticSearch(c.Embedder, movieIndex, cfg.Storage.CacheDir, vopts...)

	idxOpts := []indexer.IndexerOption{indexer.WithLogger(logger)}
	engineOpts := []search.EngineOption{search.WithLogger(logger)}
	if dict, ok := c.Keyword.(keyword.TermDictionary); ok {
		engineOpts = append(engineOpts, search.WithSpellChecker(keyword.NewSpellChecker(dict, c.Tokenizer)))
	}
	if cfg.Search.ChunkedSemantic {
		if c.Storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath); err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		chunker, err := indexer.NewChunker(cfg.Search.SemanticChunkSize, cfg.Search.SemanticChunkOverlapOrDefault())
		if err != nil {
			return nil, err
		}
		chunkIndex, err := c.newVectorIndex()
		if err != nil {
			return nil, err
		}
		chunkOpts := append(vopts, vector.WithChunkerName(chunker.String()))
		c.Chunked = vector.NewChunkedSemanticSearch(c.Embedder, chunkIndex, c.Storage, chunker.ChunkMovie, cfg.Storage.CacheDir, chunkOpts...)
		idxOpts = append(idxOpts, indexer.WithChunked(c.Chunked))
		engineOpts = append(engineOpts, search.WithChunked(c.Chunked))
	}

	c.Indexer = indexer.NewIndexer(c.Keyword, c.Semantic, cfg.Storage.CacheDir, idxOpts...)
	c.Engine = search.NewEngine(cat, c.Keyword, c.Semantic, &cfg.Search, engineOpts...)
	ok = true
	return c, nil
}

func (c *Components) newVectorIndex() (vector.VectorIndex, error) {
	idx, err := vector.NewVectorIndex(c.Config.Vector.IndexType, c.Embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.vectorIndexes = append(c.vectorIndexes, idx)
	return idx, nil
}

// Warm loads every index from cache, building what is missing or stale.
func (c *Components) Warm(ctx context.Context) error {
	_, err := c.Indexer.Load(ctx, c.Catalog())
	return err
}

// Rebuild reloads the catalog from disk and rebuilds every index.
func (c *Components) Rebuild(ctx context.Context) error {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()
	cat, err := catalog.Load(c.Config.Storage.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if _, err := c.Indexer.Build(ctx, cat); err != nil {
		return err
	}
	c.setCatalog(cat)
	return c.Engine.SetCatalog(cat)
}

// Inverted returns the BM25 index with its cache loaded; the scoring
// primitives are only available on this backend.
func (c *Components) Inverted() (*keyword.InvertedIndex, error) {
	inv, ok := c.Keyword.(*keyword.InvertedIndex)
	if !ok {
		return nil, errors.New("term statistics need keyword_backend: inverted")
	}
	if err := inv.Load(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (c *Components) Close() {
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	for _, idx := range c.vectorIndexes {
		_ = idx.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}
