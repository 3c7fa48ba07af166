package models

// RankedResult is one hit from a ranker. Score semantics depend on the producer:
// BM25 score, cosine similarity, or fused score.
type RankedResult struct {
	Movie *Movie  `json:"movie"`
	Score float64 `json:"score"`
	// KeywordRank and SemanticRank are 1-based positions in the input lists of a
	// fused result; zero means the movie was absent from that list.
	KeywordRank  int `json:"keyword_rank,omitempty"`
	SemanticRank int `json:"semantic_rank,omitempty"`
}

// ChunkResult is a chunk-level semantic hit.
type ChunkResult struct {
	ChunkMetadata
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score"`
}

// SearchResult is a ranked result as returned to API and CLI callers.
type SearchResult struct {
	*RankedResult
	Rank int `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	Mode      SearchMode      `json:"mode"`
	// Suggestions contains "Did you mean?" spelling suggestions when a lexical
	// search finds nothing and misspelled terms are detected.
	Suggestions []string `json:"suggestions,omitempty"`
}
