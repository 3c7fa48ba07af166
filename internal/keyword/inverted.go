package keyword

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// InvertedIndex is an in-memory inverted index with BM25 scoring. It owns four
// structures: token -> movie ids, movie id -> movie, movie id -> token counts,
// and movie id -> token count.
type InvertedIndex struct {
	tokenizer       *Tokenizer
	cacheDir        string
	k1              float64
	b               float64
	logger          *zap.Logger
	mu              sync.RWMutex
	index           map[string]map[int]struct{}
	docmap          map[int]*models.Movie
	termFrequencies map[int]map[string]int
	docLengths      map[int]int
	catalogHash     string
}

// InvertedIndexOption configures an InvertedIndex.
type InvertedIndexOption func(*InvertedIndex)

// WithLogger sets a logger for build and cache events.
func WithLogger(l *zap.Logger) InvertedIndexOption {
	return func(idx *InvertedIndex) { idx.logger = l }
}

// WithBM25Params overrides k1 and b used by BM25 and Search.
func WithBM25Params(k1, b float64) InvertedIndexOption {
	return func(idx *InvertedIndex) {
		idx.k1 = k1
		idx.b = b
	}
}

// NewInvertedIndex creates an empty index persisting to cacheDir.
func NewInvertedIndex(tokenizer *Tokenizer, cacheDir string, opts ...InvertedIndexOption) *InvertedIndex {
	idx := &InvertedIndex{
		tokenizer: tokenizer,
		cacheDir:  cacheDir,
		k1:        DefaultK1,
		b:         DefaultB,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.LoggerOrNop(idx.logger)
	idx.reset()
	return idx
}

func (idx *InvertedIndex) reset() {
	idx.index = make(map[string]map[int]struct{})
	idx.docmap = make(map[int]*models.Movie)
	idx.termFrequencies = make(map[int]map[string]int)
	idx.docLengths = make(map[int]int)
	idx.catalogHash = ""
}

// Build replaces the index contents with movies.
func (idx *InvertedIndex) Build(ctx context.Context, movies []*models.Movie) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset()
	for _, m := range movies {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx.addDocument(m)
	}
	idx.catalogHash = catalog.Fingerprint(movies)
	idx.logger.Info("keyword index built",
		zap.Int("documents", len(idx.docmap)),
		zap.Int("terms", len(idx.index)))
	return nil
}

func (idx *InvertedIndex) addDocument(m *models.Movie) {
	idx.docmap[m.ID] = m
	tokens := idx.tokenizer.Tokenize(m.IndexText())
	idx.docLengths[m.ID] = len(tokens)
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		ids, ok := idx.index[tok]
		if !ok {
			ids = make(map[int]struct{})
			idx.index[tok] = ids
		}
		ids[m.ID] = struct{}{}
		counts[tok]++
	}
	idx.termFrequencies[m.ID] = counts
}

// GetDocuments returns the ids of movies containing term's token, ascending.
func (idx *InvertedIndex) GetDocuments(term string) ([]int, error) {
	tok, err := idx.tokenizer.singleToken(term)
	if err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]int, 0, len(idx.index[tok]))
	for id := range idx.index[tok] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Movie returns the indexed movie with id.
func (idx *InvertedIndex) Movie(id int) (*models.Movie, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m, ok := idx.docmap[id]
	return m, ok
}

// DocCount returns the number of indexed movies.
func (idx *InvertedIndex) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docmap)
}

// DocLength returns the token count of movie id.
func (idx *InvertedIndex) DocLength(id int) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docLengths[id]
}

// AverageDocLength returns the mean token count, or 0 for an empty index.
func (idx *InvertedIndex) AverageDocLength() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.avgDocLength()
}

func (idx *InvertedIndex) avgDocLength() float64 {
	if len(idx.docLengths) == 0 {
		return 0
	}
	total := 0
	for _, n := range idx.docLengths {
		total += n
	}
	return float64(total) / float64(len(idx.docLengths))
}

// TermFrequency returns how often term's token occurs in movie docID.
func (idx *InvertedIndex) TermFrequency(docID int, term string) (int, error) {
	tok, err := idx.tokenizer.singleToken(term)
	if err != nil {
		return 0, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.termFrequencies[docID][tok], nil
}

// InverseDocumentFrequency returns ln((N + 1) / (df + 1)).
func (idx *InvertedIndex) InverseDocumentFrequency(term string) (float64, error) {
	tok, err := idx.tokenizer.singleToken(term)
	if err != nil {
		return 0, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := float64(len(idx.docmap))
	df := float64(len(idx.index[tok]))
	return math.Log((n + 1) / (df + 1)), nil
}

// TFIDF returns TermFrequency * InverseDocumentFrequency.
func (idx *InvertedIndex) TFIDF(docID int, term string) (float64, error) {
	tf, err := idx.TermFrequency(docID, term)
	if err != nil {
		return 0, err
	}
	idf, err := idx.InverseDocumentFrequency(term)
	if err != nil {
		return 0, err
	}
	return float64(tf) * idf, nil
}

// BM25IDF returns ln((N - df + 0.5) / (df + 0.5) + 1).
func (idx *InvertedIndex) BM25IDF(term string) (float64, error) {
	tok, err := idx.tokenizer.singleToken(term)
	if err != nil {
		return 0, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.bm25IDF(tok), nil
}

func (idx *InvertedIndex) bm25IDF(tok string) float64 {
	n := float64(len(idx.docmap))
	df := float64(len(idx.index[tok]))
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// BM25TF returns the saturated, length-normalized term frequency
// (tf * (k1 + 1)) / (tf + k1 * (1 - b + b * docLen/avgDocLen)).
func (idx *InvertedIndex) BM25TF(docID int, term string, k1, b float64) (float64, error) {
	tok, err := idx.tokenizer.singleToken(term)
	if err != nil {
		return 0, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.bm25TF(docID, tok, k1, b), nil
}

func (idx *InvertedIndex) bm25TF(docID int, tok string, k1, b float64) float64 {
	tf := float64(idx.termFrequencies[docID][tok])
	lengthRatio := 0.0
	if avg := idx.avgDocLength(); avg > 0 {
		lengthRatio = float64(idx.docLengths[docID]) / avg
	}
	denom := tf + k1*(1-b+b*lengthRatio)
	if denom == 0 {
		return 0
	}
	return (tf * (k1 + 1)) / denom
}

// BM25 returns BM25TF (with the index's k1 and b) times BM25IDF.
func (idx *InvertedIndex) BM25(docID int, term string) (float64, error) {
	tok, err := idx.tokenizer.singleToken(term)
	if err != nil {
		return 0, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.bm25TF(docID, tok, idx.k1, idx.b) * idx.bm25IDF(tok), nil
}

// Search returns up to limit movies ranked by summed BM25 over the query's
// tokens. Only movies sharing at least one token with the query are scored.
// Ties are broken by movie id ascending.
func (idx *InvertedIndex) Search(ctx context.Context, query string, limit int) ([]*models.RankedResult, error) {
	if limit <= 0 {
		return []*models.RankedResult{}, nil
	}
	tokens := idx.tokenizer.Tokenize(query)
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scores := make(map[int]float64)
	for _, tok := range tokens {
		ids, ok := idx.index[tok]
		if !ok {
			continue
		}
		idf := idx.bm25IDF(tok)
		for id := range ids {
			scores[id] += idx.bm25TF(id, tok, idx.k1, idx.b) * idf
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*models.RankedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, &models.RankedResult{Movie: idx.docmap[id], Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Movie.ID < results[j].Movie.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	idx.logger.Debug("keyword search",
		zap.String("query", query),
		zap.Strings("tokens", tokens),
		zap.Int("hits", len(results)))
	return results, nil
}

// CatalogHash returns the fingerprint of the movies last built or loaded.
func (idx *InvertedIndex) CatalogHash() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.catalogHash
}

// GetAllTerms returns every indexed token.
func (idx *InvertedIndex) GetAllTerms() ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	terms := make([]string, 0, len(idx.index))
	for t := range idx.index {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms, nil
}

// GetTermFrequency returns the document frequency of an already-normalized token.
func (idx *InvertedIndex) GetTermFrequency(term string) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.index[term]), nil
}

// ContainsTerm reports whether an already-normalized token is indexed.
func (idx *InvertedIndex) ContainsTerm(term string) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.index[term]
	return ok, nil
}

// Close is a no-op for InvertedIndex.
func (idx *InvertedIndex) Close() error {
	return nil
}
