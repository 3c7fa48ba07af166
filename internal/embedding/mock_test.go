package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "A princess in the highlands")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "A princess in the highlands")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
	if len(a) != 64 || e.Dimensions() != 64 {
		t.Errorf("dimensions = %d/%d, want 64", len(a), e.Dimensions())
	}
	if n := math.Sqrt(dot(a, a)); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", n)
	}
}

func TestMockEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewMockEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "racing car")
	near, _ := e.Embed(ctx, "a racing car in the desert")
	far, _ := e.Embed(ctx, "princess castle dragon")
	if dot(q, near) <= dot(q, far) {
		t.Errorf("shared-word text should be closer: near=%v far=%v", dot(q, near), dot(q, far))
	}
}

func TestMockEmbedder_EmptyInput(t *testing.T) {
	e := NewMockEmbedder(8)
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := e.Embed(context.Background(), text); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Embed(%q): err = %v, want ErrEmptyInput", text, err)
		}
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"ok", ""}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("EmbedBatch with blank text: err = %v", err)
	}
}

func TestValidateText(t *testing.T) {
	if err := ValidateText("x"); err != nil {
		t.Errorf("ValidateText(x) = %v", err)
	}
	if err := ValidateText(" \t"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("ValidateText(blank) = %v", err)
	}
}
