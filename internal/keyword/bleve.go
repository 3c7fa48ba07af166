package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

const (
	fieldTitle       = "title"
	fieldDescription = "description"

	internalCatalogHash = "kensaku.catalog_hash"
)

// BleveIndex implements KeywordIndex on a Bleve index using the English
// analyzer. An empty path keeps the index in memory.
type BleveIndex struct {
	path   string
	logger *zap.Logger
	mu     sync.RWMutex
	index  bleve.Index
}

// NewBleveIndex opens the index at path, creating it when absent.
func NewBleveIndex(path string, logger *zap.Logger) (*BleveIndex, error) {
	b := &BleveIndex{path: path, logger: utils.LoggerOrNop(logger)}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			index, err := bleve.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open Bleve index: %w", err)
			}
			b.index = index
			return b, nil
		}
	}
	index, err := b.create()
	if err != nil {
		return nil, err
	}
	b.index = index
	return b, nil
}

func movieMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldTitle, text)
	doc.AddFieldMappingsAt(fieldDescription, text)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = en.AnalyzerName
	return im
}

func (b *BleveIndex) create() (bleve.Index, error) {
	var (
		index bleve.Index
		err   error
	)
	if b.path == "" {
		index, err = bleve.NewMemOnly(movieMapping())
	} else {
		if err = os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create Bleve index directory: %w", err)
		}
		index, err = bleve.New(b.path, movieMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

// Build drops the existing index and indexes movies in one batch.
func (b *BleveIndex) Build(ctx context.Context, movies []*models.Movie) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			return fmt.Errorf("failed to close Bleve index: %w", err)
		}
		b.index = nil
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("failed to remove Bleve index: %w", err)
		}
	}
	index, err := b.create()
	if err != nil {
		return err
	}
	b.index = index

	batch := index.NewBatch()
	for _, m := range movies {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := map[string]interface{}{
			fieldTitle:       m.Title,
			fieldDescription: m.Description,
		}
		if err := batch.Index(strconv.Itoa(m.ID), doc); err != nil {
			return fmt.Errorf("failed to index movie %d: %w", m.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return fmt.Errorf("failed to commit Bleve batch: %w", err)
	}
	if err := index.SetInternal([]byte(internalCatalogHash), []byte(catalog.Fingerprint(movies))); err != nil {
		return fmt.Errorf("failed to store catalog hash: %w", err)
	}
	b.logger.Info("bleve index built", zap.Int("documents", len(movies)), zap.String("path", b.path))
	return nil
}

// Search runs a match query over title and description. Movies are rebuilt
// from stored fields; ties are broken by movie id ascending.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*models.RankedResult, error) {
	if limit <= 0 {
		return []*models.RankedResult{}, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, ErrIndexClosed
	}

	titleQ := bleve.NewMatchQuery(query)
	titleQ.SetField(fieldTitle)
	descQ := bleve.NewMatchQuery(query)
	descQ.SetField(fieldDescription)
	q := bleve.NewDisjunctionQuery([]blevequery.Query{titleQ, descQ}...)

	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count Bleve documents: %w", err)
	}
	req := bleve.NewSearchRequest(q)
	// Fetch every hit so the id tie-break is applied before truncation.
	req.Size = int(count)
	req.Fields = []string{fieldTitle, fieldDescription}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*models.RankedResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected Bleve document id %q: %w", hit.ID, err)
		}
		title, _ := hit.Fields[fieldTitle].(string)
		desc, _ := hit.Fields[fieldDescription].(string)
		out = append(out, &models.RankedResult{
			Movie: &models.Movie{ID: id, Title: title, Description: desc},
			Score: hit.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Movie.ID < out[j].Movie.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DocCount returns the number of indexed movies, or 0 if it cannot be read.
func (b *BleveIndex) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// CatalogHash returns the fingerprint stored by the last Build, or "" for an
// index built before fingerprints were recorded.
func (b *BleveIndex) CatalogHash() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ""
	}
	v, err := b.index.GetInternal([]byte(internalCatalogHash))
	if err != nil {
		return ""
	}
	return string(v)
}

// GetAllTerms returns the analyzed terms of both text fields.
func (b *BleveIndex) GetAllTerms() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, ErrIndexClosed
	}
	seen := make(map[string]struct{})
	for _, field := range []string{fieldTitle, fieldDescription} {
		dict, err := b.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s dictionary: %w", field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			seen[entry.Term] = struct{}{}
		}
		dict.Close()
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms, nil
}

// GetTermFrequency returns the number of movies containing an analyzed term
// in either field.
func (b *BleveIndex) GetTermFrequency(term string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, ErrIndexClosed
	}
	titleQ := bleve.NewTermQuery(term)
	titleQ.SetField(fieldTitle)
	descQ := bleve.NewTermQuery(term)
	descQ.SetField(fieldDescription)
	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(titleQ, descQ))
	req.Size = 0
	res, err := b.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to search for term frequency: %w", err)
	}
	return int(res.Total), nil
}

// ContainsTerm reports whether an analyzed term is indexed.
func (b *BleveIndex) ContainsTerm(term string) (bool, error) {
	n, err := b.GetTermFrequency(term)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
