package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	badAlpha := 1.5
	tests := []struct {
		name     string
		query    *SearchQuery
		wantErr  bool
		wantMode SearchMode
	}{
		{"empty query", &SearchQuery{Query: ""}, true, ""},
		{"valid query", &SearchQuery{Query: "hello"}, false, ModeHybrid},
		{"sets default limit", &SearchQuery{Query: "x", Limit: 0}, false, ModeHybrid},
		{"caps limit at 100", &SearchQuery{Query: "x", Limit: 200}, false, ModeHybrid},
		{"keeps lexical mode", &SearchQuery{Query: "x", Mode: ModeLexical}, false, ModeLexical},
		{"unknown mode", &SearchQuery{Query: "x", Mode: "fuzzy"}, true, ""},
		{"alpha out of range", &SearchQuery{Query: "x", Mode: ModeWeighted, Alpha: &badAlpha}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.query.Limit <= 0 || tt.query.Limit > 100 {
				t.Errorf("limit not normalized: %d", tt.query.Limit)
			}
			if tt.query.Mode != tt.wantMode {
				t.Errorf("mode = %s, want %s", tt.query.Mode, tt.wantMode)
			}
		})
	}
}

func TestMovieTexts(t *testing.T) {
	m := &Movie{ID: 1, Title: "Brave", Description: "A princess."}
	if got := m.IndexText(); got != "Brave A princess." {
		t.Errorf("IndexText = %q", got)
	}
	if got := m.EmbeddingText(); got != "Brave: A princess." {
		t.Errorf("EmbeddingText = %q", got)
	}
}
