package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

type countingEmbedder struct {
	*MockEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(16)}
	c := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	a1, err := c.Embed(ctx, "space pirates")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := c.Embed(ctx, "space pirates")
	if &a1[0] != &a2[0] {
		t.Error("second call should return the cached slice")
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls.Load())
	}

	out, err := c.EmbedBatch(ctx, []string{"space pirates", "haunted house", "haunted house"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("batch len = %d", len(out))
	}
	if inner.calls.Load() != 3 {
		t.Errorf("inner calls = %d, want 3 (one cached, two misses)", inner.calls.Load())
	}
	if c.Dimensions() != 16 {
		t.Errorf("Dimensions = %d", c.Dimensions())
	}

	if _, err := c.Embed(ctx, "   "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("blank text: err = %v, want ErrEmptyInput", err)
	}
}
