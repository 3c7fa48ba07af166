package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kensaku/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "space crew",
		QueryTime: 42,
		Total:     2,
		Mode:      models.ModeHybrid,
		Results: []*models.SearchResult{
			{Rank: 1, RankedResult: &models.RankedResult{
				Movie: &models.Movie{ID: 7, Title: "Alien", Description: "A crew in deep space."},
				Score: 0.0325, KeywordRank: 1, SemanticRank: 2,
			}},
			{Rank: 2, RankedResult: &models.RankedResult{
				Movie: &models.Movie{ID: 9, Title: "Solaris", Description: strings.Repeat("ocean ", 60)},
				Score: 0.0161, SemanticRank: 1,
			}},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "space crew" || decoded.QueryTime != 42 || decoded.Mode != models.ModeHybrid {
		t.Errorf("decoded header = %+v", decoded)
	}
	if len(decoded.Results) != 2 || decoded.Results[0].Movie.ID != 7 || decoded.Results[0].SemanticRank != 2 {
		t.Errorf("decoded results = %+v", decoded.Results)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	resp := sampleResponse()
	resp.Suggestions = []string{"space crew"}
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`Found 2 results for "space crew" in 42ms (hybrid)`,
		"1. Alien (id 7) | Score: 0.0325 (keyword rank: 1, semantic rank: 2)",
		"2. Solaris (id 9)",
		"keyword rank: -",
		"...",
		"Did you mean: space crew?",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	if f, err := ParseOutputFormat("JSON"); err != nil || f != OutputJSON {
		t.Errorf("JSON = %v, %v", f, err)
	}
	if f, err := ParseOutputFormat("text"); err != nil || f != OutputText {
		t.Errorf("text = %v, %v", f, err)
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("yaml should be rejected")
	}
}

func TestWriteChunks(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteChunks(&buf, []string{"a b", "c d", "e"}, OutputText)
	if got := buf.String(); got != "3 chunks\n1. a b\n2. c d\n3. e\n" {
		t.Errorf("text = %q", got)
	}
	buf.Reset()
	_ = WriteChunks(&buf, nil, OutputJSON)
	var out struct {
		Chunks []string `json:"chunks"`
		Count  int      `json:"count"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Chunks == nil || out.Count != 0 {
		t.Errorf("empty chunks json = %s", buf.String())
	}
}

func TestWriteScore(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteScore(&buf, "BM25 IDF of 'brave'", 0.4700036292457356, OutputText)
	if got := buf.String(); got != "BM25 IDF of 'brave': 0.47\n" {
		t.Errorf("text = %q", got)
	}
}

func TestWriteVector(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteVector(&buf, []float32{0.5, -0.25, 0.125, 1}, 2, OutputText)
	if got := buf.String(); got != "Dimensions: 4\n[0.5000, -0.2500, ...]\n" {
		t.Errorf("text = %q", got)
	}
}
