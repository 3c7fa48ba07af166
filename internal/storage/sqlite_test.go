package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kensaku/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func chunk(movieID, idx, total int, content string) *models.Chunk {
	return &models.Chunk{
		ChunkMetadata: models.ChunkMetadata{MovieID: movieID, ChunkIndex: idx, TotalChunks: total},
		Content:       content,
	}
}

func TestSQLiteStorage_ReplaceAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := []*models.Chunk{chunk(2, 0, 1, "b0"), chunk(1, 1, 2, "a1"), chunk(1, 0, 2, "a0")}
	if err := store.ReplaceChunks(ctx, first); err != nil {
		t.Fatal(err)
	}
	got, err := store.ListChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	want := []string{"1/0", "1/1", "2/0"}
	for i, ch := range got {
		if ch.Key() != want[i] {
			t.Errorf("chunk %d key = %s, want %s", i, ch.Key(), want[i])
		}
	}

	if err := store.ReplaceChunks(ctx, []*models.Chunk{chunk(9, 0, 1, "z")}); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountChunks(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountChunks after replace = %d, %v; want 1", n, err)
	}
}

func TestSQLiteStorage_GetChunk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.ReplaceChunks(ctx, []*models.Chunk{chunk(5, 0, 2, "first"), chunk(5, 1, 2, "second")})

	ch, err := store.GetChunk(ctx, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if ch.Content != "second" || ch.TotalChunks != 2 {
		t.Errorf("GetChunk = %+v", ch)
	}
	if _, err := store.GetChunk(ctx, 5, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing chunk: err = %v, want ErrNotFound", err)
	}
	chunks, err := store.ChunksForMovie(ctx, 5)
	if err != nil || len(chunks) != 2 || chunks[0].Content != "first" {
		t.Errorf("ChunksForMovie = %v, %v", chunks, err)
	}
}

func TestSQLiteStorage_ReplaceRollsBackOnDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.ReplaceChunks(ctx, []*models.Chunk{chunk(1, 0, 1, "keep")})
	err := store.ReplaceChunks(ctx, []*models.Chunk{chunk(2, 0, 1, "x"), chunk(2, 0, 1, "dup")})
	if err == nil {
		t.Fatal("duplicate primary key should fail")
	}
	got, _ := store.ListChunks(ctx)
	if len(got) != 1 || got[0].Content != "keep" {
		t.Errorf("failed replace must leave previous chunks, got %v", got)
	}
}

func TestSQLiteStorage_Meta(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.GetMeta(ctx, "chunk_catalog_hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing meta: err = %v", err)
	}
	if err := store.SetMeta(ctx, "chunk_catalog_hash", "one"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetMeta(ctx, "chunk_catalog_hash", "two"); err != nil {
		t.Fatal(err)
	}
	v, err := store.GetMeta(ctx, "chunk_catalog_hash")
	if err != nil || v != "two" {
		t.Errorf("GetMeta = %q, %v; want two", v, err)
	}
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.ReplaceChunks(ctx, []*models.Chunk{chunk(1, 0, 1, "x")}); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountChunks(ctx); n != 1 {
		t.Errorf("CountChunks = %d", n)
	}
}
