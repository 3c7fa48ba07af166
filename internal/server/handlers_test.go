package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/kensaku/internal/catalog"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/vector"
)

type mockRebuilder struct {
	calls int
	err   error
}

func (m *mockRebuilder) Rebuild(context.Context) error {
	m.calls++
	return m.err
}

func newTestEngine(t *testing.T, built bool) *search.Engine {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	cat, err := catalog.New([]*models.Movie{
		{ID: 1, Title: "Brave", Description: "A princess defies tradition with her archery skills."},
		{ID: 2, Title: "Cars", Description: "A race car learns humility on route 66."},
	})
	if err != nil {
		t.Fatal(err)
	}
	kw := keyword.NewInvertedIndex(keyword.NewDefaultTokenizer(), dir)
	if err := kw.Build(ctx, cat.Movies()); err != nil {
		t.Fatal(err)
	}
	vidx, _ := vector.NewMemoryIndex(32)
	sem := vector.NewSemanticSearch(embedding.NewMockEmbedder(32), vidx, dir)
	if built {
		if err := sem.BuildEmbeddings(ctx, cat); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return search.NewEngine(cat, kw, sem, &cfg.Search)
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	return NewServer(newTestEngine(t, true), &config.ServerConfig{Host: "localhost", Port: 8080}, nil, opts...)
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleSearch(t *testing.T) {
	h := newTestServer(t).Router()
	w := do(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "race car", "mode": "lexical", "limit": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Movie.ID != 2 || resp.Results[0].Rank != 1 {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
	if resp.Mode != models.ModeLexical {
		t.Errorf("mode = %s", resp.Mode)
	}
}

func TestHandleSearch_BadRequests(t *testing.T) {
	h := newTestServer(t).Router()
	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", "{"},
		{"empty query", map[string]string{"query": ""}},
		{"unknown mode", map[string]string{"query": "x", "mode": "fuzzy"}},
		{"blank semantic query", map[string]string{"query": "   ", "mode": "semantic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/search", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400 (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleSearch_NotReady(t *testing.T) {
	srv := NewServer(newTestEngine(t, false), &config.ServerConfig{}, nil)
	w := do(t, srv.Router(), http.MethodPost, "/api/v1/search", map[string]string{"query": "brave", "mode": "semantic"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestHandleGetMovie(t *testing.T) {
	h := newTestServer(t).Router()
	w := do(t, h, http.MethodGet, "/api/v1/movies/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var m models.Movie
	if err := json.NewDecoder(w.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if m.Title != "Brave" {
		t.Errorf("title = %s", m.Title)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/movies/99", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing movie: got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/movies/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", w.Code)
	}
}

func TestHandleStatusAndHealth(t *testing.T) {
	h := newTestServer(t, WithDiskPaths(t.TempDir())).Router()
	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Index     search.Status `json:"index"`
		DiskUsage *int64        `json:"disk_usage_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Index.Movies != 2 || out.Index.KeywordDocs != 2 || out.Index.Embeddings != 2 {
		t.Errorf("index status = %+v", out.Index)
	}
	if out.DiskUsage == nil {
		t.Error("disk_usage_bytes missing")
	}

	if w := do(t, h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health: got %d", w.Code)
	}
}

func TestHandleRebuild(t *testing.T) {
	if w := do(t, newTestServer(t).Router(), http.MethodPost, "/api/v1/rebuild", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("without rebuilder: got %d", w.Code)
	}

	rb := &mockRebuilder{}
	h := newTestServer(t, WithRebuilder(rb)).Router()
	if w := do(t, h, http.MethodPost, "/api/v1/rebuild", nil); w.Code != http.StatusOK || rb.calls != 1 {
		t.Errorf("rebuild: got %d, calls %d", w.Code, rb.calls)
	}
	rb.err = errors.New("disk full")
	if w := do(t, h, http.MethodPost, "/api/v1/rebuild", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("failed rebuild: got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", models.ErrInvalidQuery), http.StatusBadRequest},
		{keyword.ErrInvalidTerm, http.StatusBadRequest},
		{embedding.ErrEmptyInput, http.StatusBadRequest},
		{fmt.Errorf("semantic search failed: %w", vector.ErrNotReady), http.StatusServiceUnavailable},
		{vector.ErrCacheMissing, http.StatusServiceUnavailable},
		{keyword.ErrCacheMissing, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
