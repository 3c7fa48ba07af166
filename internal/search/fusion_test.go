package search

import (
	"math"
	"testing"

	"github.com/hyperjump/kensaku/internal/models"
)

func movie(id int) *models.Movie {
	return &models.Movie{ID: id, Title: string(rune('A' + id - 1))}
}

func ranked(scores map[int]float64, ids ...int) []*models.RankedResult {
	out := make([]*models.RankedResult, len(ids))
	for i, id := range ids {
		out[i] = &models.RankedResult{Movie: movie(id), Score: scores[id]}
	}
	return out
}

func ids(results []*models.RankedResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Movie.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFuse_SwappedRanksTie(t *testing.T) {
	// A=1, B=2: lexical [A, B], semantic [B, A]
	lexical := ranked(nil, 1, 2)
	semantic := ranked(nil, 2, 1)
	results := Fuse(lexical, semantic, 10, 60)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	want := 1.0/61 + 1.0/62
	for _, r := range results {
		if math.Abs(r.Score-want) > 1e-12 {
			t.Errorf("movie %d score = %v, want %v", r.Movie.ID, r.Score, want)
		}
	}
	if results[0].Score != results[1].Score {
		t.Fatalf("scores should tie exactly: %v vs %v", results[0].Score, results[1].Score)
	}
	// tie keeps first-appearance order: A came first in the lexical list
	if !equalInts(ids(results), []int{1, 2}) {
		t.Errorf("tie order = %v, want [1 2]", ids(results))
	}
	if results[0].KeywordRank != 1 || results[0].SemanticRank != 2 {
		t.Errorf("ranks = %d/%d, want 1/2", results[0].KeywordRank, results[0].SemanticRank)
	}
}

func TestFuse_SumsContributions(t *testing.T) {
	lexical := ranked(nil, 1, 2, 3)
	semantic := ranked(nil, 3, 4)
	results := Fuse(lexical, semantic, 10, 60)
	// 3: 1/63 + 1/61 beats 1: 1/61
	if !equalInts(ids(results), []int{3, 1, 4, 2}) {
		t.Errorf("order = %v, want [3 1 4 2]", ids(results))
	}
	if got, want := results[0].Score, 1.0/63+1.0/61; math.Abs(got-want) > 1e-12 {
		t.Errorf("fused score = %v, want %v", got, want)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted descending")
		}
	}
	only := results[2]
	if only.Movie.ID != 4 || only.KeywordRank != 0 || only.SemanticRank != 2 {
		t.Errorf("semantic-only entry = %+v", only)
	}
}

func TestFuse_LimitAndDefaults(t *testing.T) {
	lexical := ranked(nil, 1, 2, 3)
	if got := Fuse(lexical, nil, 2, 0); len(got) != 2 {
		t.Errorf("limit 2 returned %d", len(got))
	} else if math.Abs(got[0].Score-1.0/61) > 1e-12 {
		t.Errorf("k <= 0 should use 60, score = %v", got[0].Score)
	}
	if got := Fuse(lexical, nil, 0, 60); len(got) != 0 {
		t.Errorf("limit 0 returned %d", len(got))
	}
	if got := Fuse(nil, nil, 5, 60); len(got) != 0 {
		t.Errorf("empty inputs returned %d", len(got))
	}
	dup := append(ranked(nil, 1), ranked(nil, 1)...)
	if got := Fuse(dup, nil, 5, 60); len(got) != 1 || got[0].KeywordRank != 1 {
		t.Errorf("duplicate within list: %+v", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{2, 4, 6})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Normalize[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	for i, v := range Normalize([]float64{3, 3, 3}) {
		if v != 0 {
			t.Errorf("equal values: [%d] = %v, want 0", i, v)
		}
	}
	if len(Normalize(nil)) != 0 {
		t.Error("empty input should give empty output")
	}
	in := []float64{-7.5, 0.25, 12, 3.3}
	out := Normalize(in)
	if len(out) != len(in) {
		t.Fatalf("length changed")
	}
	for i, v := range out {
		if v < 0 || v > 1 {
			t.Errorf("[%d] = %v outside [0,1]", i, v)
		}
	}
	if in[0] != -7.5 {
		t.Error("input mutated")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	tests := [][]float64{
		{2, 4, 6},
		{-7.5, 0.25, 12, 3.3},
		{0.1, 0.9, 0.35, 0.35},
		{5, 5, 5},
		{42},
	}
	for _, in := range tests {
		once := Normalize(in)
		twice := Normalize(once)
		for i := range once {
			if math.Abs(once[i]-twice[i]) > 1e-12 {
				t.Errorf("Normalize(%v)[%d]: once %v, twice %v", in, i, once[i], twice[i])
			}
		}
	}
	// interior values keep their relative position
	out := Normalize([]float64{10, 13, 20})
	if math.Abs(out[1]-0.3) > 1e-12 {
		t.Errorf("interior value = %v, want 0.3", out[1])
	}
}

func TestWeightedFuse(t *testing.T) {
	lexical := ranked(map[int]float64{1: 10, 2: 5, 3: 0}, 1, 2, 3)
	semantic := ranked(map[int]float64{3: 0.75, 2: 0.5, 4: 0.25}, 3, 2, 4)

	results := WeightedFuse(lexical, semantic, 1, 10)
	if results[0].Movie.ID != 1 || results[0].Score != 1 {
		t.Errorf("alpha=1 top = %d (%v), want 1 (1)", results[0].Movie.ID, results[0].Score)
	}
	results = WeightedFuse(lexical, semantic, 0, 10)
	if results[0].Movie.ID != 3 {
		t.Errorf("alpha=0 top = %d, want 3", results[0].Movie.ID)
	}
	results = WeightedFuse(lexical, semantic, 0.5, 2)
	if len(results) != 2 {
		t.Fatalf("limit 2 returned %d", len(results))
	}
	// 2: 0.5*0.5 + 0.5*0.5 = 0.5; 1: 0.5*1 = 0.5; 3: 0.5*1 = 0.5; ties by id
	if !equalInts(ids(results), []int{1, 2}) {
		t.Errorf("tied order = %v, want [1 2]", ids(results))
	}
}

func TestAggregateChunks(t *testing.T) {
	hit := func(movieID, idx int, score float64) *models.ChunkResult {
		return &models.ChunkResult{ChunkMetadata: models.ChunkMetadata{MovieID: movieID, ChunkIndex: idx}, Score: score}
	}
	hits := []*models.ChunkResult{hit(1, 0, 0.3), hit(1, 2, 0.8), hit(2, 0, 0.5), hit(3, 1, 0.5)}
	got := AggregateChunks(hits, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 movies, got %d", len(got))
	}
	if got[0].MovieID != 1 || got[0].Score != 0.8 || got[0].Best.ChunkIndex != 2 {
		t.Errorf("best = %+v", got[0])
	}
	if got[1].MovieID != 2 || got[2].MovieID != 3 {
		t.Errorf("tie order = %d,%d; want 2,3", got[1].MovieID, got[2].MovieID)
	}
	if len(AggregateChunks(hits, 1)) != 1 {
		t.Error("limit not applied")
	}
}
