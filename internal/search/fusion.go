// Package search fuses lexical and semantic rankings and runs queries across them.
package search

import (
	"sort"

	"github.com/hyperjump/kensaku/internal/models"
)

// DefaultRRFK is the reciprocal rank fusion constant.
const DefaultRRFK = 60

// fused accumulates one movie's ranks across both input lists.
type fused struct {
	movie        *models.Movie
	keywordRank  int
	semanticRank int
	keyword      float64
	semantic     float64
}

// collect merges both lists by movie id in first-appearance order, lexical
// list first. A movie repeated within one list keeps its first position.
func collect(lexical, semantic []*models.RankedResult) []*fused {
	byID := make(map[int]*fused)
	var order []*fused
	get := func(m *models.Movie) *fused {
		f, ok := byID[m.ID]
		if !ok {
			f = &fused{movie: m}
			byID[m.ID] = f
			order = append(order, f)
		}
		return f
	}
	for i, r := range lexical {
		if r == nil || r.Movie == nil {
			continue
		}
		if f := get(r.Movie); f.keywordRank == 0 {
			f.keywordRank = i + 1
			f.keyword = r.Score
		}
	}
	for i, r := range semantic {
		if r == nil || r.Movie == nil {
			continue
		}
		if f := get(r.Movie); f.semanticRank == 0 {
			f.semanticRank = i + 1
			f.semantic = r.Score
		}
	}
	return order
}

func rrf(rank, k int) float64 {
	if rank == 0 {
		return 0
	}
	return 1 / float64(k+rank)
}

// Fuse merges two ranked lists with reciprocal rank fusion: each movie scores
// the sum of 1/(k+rank) over the lists it appears in. Equal scores keep
// first-appearance order. k <= 0 uses DefaultRRFK; limit <= 0 returns nothing.
func Fuse(lexical, semantic []*models.RankedResult, limit, k int) []*models.RankedResult {
	if limit <= 0 {
		return []*models.RankedResult{}
	}
	if k <= 0 {
		k = DefaultRRFK
	}
	order := collect(lexical, semantic)
	out := make([]*models.RankedResult, len(order))
	for i, f := range order {
		out[i] = &models.RankedResult{
			Movie:        f.movie,
			Score:        rrf(f.keywordRank, k) + rrf(f.semanticRank, k),
			KeywordRank:  f.keywordRank,
			SemanticRank: f.semanticRank,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Normalize min-max rescales values into [0, 1]. When every value is equal
// the result is all zeros.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

func normalizedScores(results []*models.RankedResult) map[int]float64 {
	scores := make([]float64, 0, len(results))
	ids := make([]int, 0, len(results))
	for _, r := range results {
		if r == nil || r.Movie == nil {
			continue
		}
		scores = append(scores, r.Score)
		ids = append(ids, r.Movie.ID)
	}
	out := make(map[int]float64, len(ids))
	for i, v := range Normalize(scores) {
		if _, ok := out[ids[i]]; !ok {
			out[ids[i]] = v
		}
	}
	return out
}

// WeightedFuse min-max normalises each list and blends them as
// alpha*lexical + (1-alpha)*semantic. A movie missing from a list scores 0
// there. Ties are broken by movie id.
func WeightedFuse(lexical, semantic []*models.RankedResult, alpha float64, limit int) []*models.RankedResult {
	if limit <= 0 {
		return []*models.RankedResult{}
	}
	lex := normalizedScores(lexical)
	sem := normalizedScores(semantic)
	order := collect(lexical, semantic)
	out := make([]*models.RankedResult, len(order))
	for i, f := range order {
		out[i] = &models.RankedResult{
			Movie:        f.movie,
			Score:        alpha*lex[f.movie.ID] + (1-alpha)*sem[f.movie.ID],
			KeywordRank:  f.keywordRank,
			SemanticRank: f.semanticRank,
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Movie.ID < out[j].Movie.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ChunkMatch is a movie's best chunk hit.
type ChunkMatch struct {
	MovieID int
	Score   float64
	Best    *models.ChunkResult
}

// AggregateChunks collapses chunk hits to one entry per movie holding the
// best chunk score, ordered by score then movie id.
func AggregateChunks(hits []*models.ChunkResult, limit int) []*ChunkMatch {
	if limit <= 0 {
		return []*ChunkMatch{}
	}
	byMovie := make(map[int]*ChunkMatch)
	for _, h := range hits {
		if h == nil {
			continue
		}
		m, ok := byMovie[h.MovieID]
		if !ok {
			byMovie[h.MovieID] = &ChunkMatch{MovieID: h.MovieID, Score: h.Score, Best: h}
			continue
		}
		if h.Score > m.Score {
			m.Score = h.Score
			m.Best = h
		}
	}
	out := make([]*ChunkMatch, 0, len(byMovie))
	for _, m := range byMovie {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].MovieID < out[j].MovieID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
