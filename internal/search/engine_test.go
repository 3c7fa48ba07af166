package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/vector"
)

func testMovies() []*models.Movie {
	return []*models.Movie{
		{ID: 1, Title: "Dragon Knight", Description: "A knight befriends a dragon. Together they defend the kingdom."},
		{ID: 2, Title: "Space Crew", Description: "A crew drifts through deep space. Their ship is failing."},
		{ID: 3, Title: "Race Day", Description: "A race car driver chases the championship. The final lap decides everything."},
		{ID: 4, Title: "Quiet Harbor", Description: "A fisherman tends his boat in a quiet harbor town."},
	}
}

func testConfig() *config.SearchConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &cfg.Search
}

type engineFixture struct {
	engine   *Engine
	catalog  *catalog.Catalog
	keyword  *keyword.InvertedIndex
	semantic *vector.SemanticSearch
}

func newEngine(t *testing.T, chunked bool) *engineFixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	cat, err := catalog.New(testMovies())
	if err != nil {
		t.Fatal(err)
	}
	tok := keyword.NewDefaultTokenizer()
	kw := keyword.NewInvertedIndex(tok, dir)
	if err := kw.Build(ctx, cat.Movies()); err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewMockEmbedder(64)
	vidx, _ := vector.NewMemoryIndex(64)
	sem := vector.NewSemanticSearch(emb, vidx, dir)
	if err := sem.BuildEmbeddings(ctx, cat); err != nil {
		t.Fatal(err)
	}
	opts := []EngineOption{WithSpellChecker(keyword.NewSpellChecker(kw, tok))}
	if chunked {
		store, err := storage.NewSQLiteStorage(filepath.Join(dir, "chunks.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = store.Close() })
		chunker, _ := indexer.NewChunker(1, 0)
		cidx, _ := vector.NewMemoryIndex(64)
		cs := vector.NewChunkedSemanticSearch(emb, cidx, store, chunker.ChunkMovie, dir)
		if err := cs.BuildChunkEmbeddings(ctx, cat); err != nil {
			t.Fatal(err)
		}
		opts = append(opts, WithChunked(cs))
	}
	return &engineFixture{
		engine:   NewEngine(cat, kw, sem, testConfig(), opts...),
		catalog:  cat,
		keyword:  kw,
		semantic: sem,
	}
}

func TestEngine_SearchModes(t *testing.T) {
	f := newEngine(t, false)
	ctx := context.Background()
	for _, mode := range []models.SearchMode{models.ModeLexical, models.ModeSemantic, models.ModeHybrid, models.ModeWeighted} {
		t.Run(string(mode), func(t *testing.T) {
			resp, err := f.engine.Search(ctx, &models.SearchQuery{Query: "dragon knight", Mode: mode, Limit: 3})
			if err != nil {
				t.Fatal(err)
			}
			if resp.Mode != mode || resp.Query != "dragon knight" {
				t.Errorf("response echo = %s %q", resp.Mode, resp.Query)
			}
			if len(resp.Results) == 0 {
				t.Fatal("no results")
			}
			if resp.Results[0].Movie.ID != 1 {
				t.Errorf("top = %d, want 1", resp.Results[0].Movie.ID)
			}
			for i, r := range resp.Results {
				if r.Rank != i+1 {
					t.Errorf("rank %d at position %d", r.Rank, i)
				}
			}
			if len(resp.Results) > 3 || resp.Total != len(resp.Results) {
				t.Errorf("limit/total: %d results, total %d", len(resp.Results), resp.Total)
			}
		})
	}
}

func TestEngine_DefaultsApplied(t *testing.T) {
	f := newEngine(t, false)
	q := &models.SearchQuery{Query: "crew"}
	resp, err := f.engine.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if q.Limit != 5 || resp.Mode != models.ModeHybrid {
		t.Errorf("defaults: limit=%d mode=%s", q.Limit, resp.Mode)
	}
}

func TestEngine_HybridMatchesFuse(t *testing.T) {
	f := newEngine(t, false)
	ctx := context.Background()
	lex, err := f.keyword.Search(ctx, "race crew", 4)
	if err != nil {
		t.Fatal(err)
	}
	sem, err := f.semantic.Search(ctx, "race crew", 4)
	if err != nil {
		t.Fatal(err)
	}
	want := Fuse(lex, sem, 2, 60)
	got, err := f.engine.HybridSearch(ctx, "race crew", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !equalInts(ids(got), ids(want)) {
		t.Errorf("hybrid = %v, fuse = %v", ids(got), ids(want))
	}
}

func TestEngine_Errors(t *testing.T) {
	f := newEngine(t, false)
	ctx := context.Background()
	if _, err := f.engine.Search(ctx, &models.SearchQuery{Query: ""}); err == nil {
		t.Error("empty query should fail")
	}
	if _, err := f.engine.Search(ctx, &models.SearchQuery{Query: "x", Mode: "fuzzy"}); err == nil {
		t.Error("unknown mode should fail")
	}
	if _, err := f.engine.Search(ctx, &models.SearchQuery{Query: "...", Mode: models.ModeSemantic}); err != nil {
		t.Errorf("punctuation query is still embeddable: %v", err)
	}

	cat, _ := catalog.New(testMovies())
	vidx, _ := vector.NewMemoryIndex(8)
	empty := NewEngine(cat, f.keyword, vector.NewSemanticSearch(embedding.NewMockEmbedder(8), vidx, t.TempDir()), testConfig())
	_, err := empty.Search(ctx, &models.SearchQuery{Query: "dragon", Mode: models.ModeHybrid})
	if !errors.Is(err, vector.ErrNotReady) {
		t.Errorf("hybrid over empty vector index: err = %v, want ErrNotReady", err)
	}
}

func TestEngine_Suggestions(t *testing.T) {
	f := newEngine(t, false)
	resp, err := f.engine.Search(context.Background(), &models.SearchQuery{Query: "dragn", Mode: models.ModeLexical})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("misspelled lexical query matched %d", len(resp.Results))
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0] != "dragon" {
		t.Errorf("suggestions = %v, want [dragon]", resp.Suggestions)
	}

	resp, err = f.engine.Search(context.Background(), &models.SearchQuery{Query: "dragon", Mode: models.ModeLexical})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Suggestions) != 0 {
		t.Errorf("matched query got suggestions %v", resp.Suggestions)
	}
}

func TestEngine_ChunkedSemantic(t *testing.T) {
	f := newEngine(t, true)
	results, err := f.engine.SemanticSearch(context.Background(), "fisherman boat harbor", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Movie.ID != 4 {
		t.Fatalf("chunked top = %v, want movie 4", ids(results))
	}
	seen := map[int]bool{}
	for _, r := range results {
		if seen[r.Movie.ID] {
			t.Errorf("movie %d returned twice", r.Movie.ID)
		}
		seen[r.Movie.ID] = true
	}
	st := f.engine.Status()
	if !st.Chunked || st.ChunkEmbeddings != 7 || st.Movies != 4 || st.Embeddings != 4 {
		t.Errorf("status = %+v", st)
	}
}

func TestEngine_MovieAndSetCatalog(t *testing.T) {
	f := newEngine(t, false)
	if m, ok := f.engine.Movie(3); !ok || m.Title != "Race Day" {
		t.Errorf("Movie(3) = %v, %v", m, ok)
	}
	smaller, _ := catalog.New(testMovies()[:1])
	if err := f.engine.SetCatalog(smaller); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.engine.Movie(3); ok {
		t.Error("movie 3 should be gone after SetCatalog")
	}
}
