// Package cli renders search output for the kensaku command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	writeSearchResultsText(w, response)
	return nil
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms (%s)\n\n",
		response.Total, response.Query, response.QueryTime, response.Mode)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	if len(response.Suggestions) > 0 {
		fmt.Fprintf(w, "Did you mean: %s?\n", strings.Join(response.Suggestions, ", "))
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s (id %d) | Score: %.4f", result.Rank, result.Movie.Title, result.Movie.ID, result.Score)
	if result.KeywordRank > 0 || result.SemanticRank > 0 {
		fmt.Fprintf(w, " (keyword rank: %s, semantic rank: %s)", rankString(result.KeywordRank), rankString(result.SemanticRank))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n\n", utils.Truncate(result.Movie.Description, 200))
}

func rankString(rank int) string {
	if rank == 0 {
		return "-"
	}
	return fmt.Sprint(rank)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteChunks writes numbered chunks, one per block.
func WriteChunks(w io.Writer, chunks []string, format OutputFormat) error {
	if format == OutputJSON {
		if chunks == nil {
			chunks = []string{}
		}
		return writeJSON(w, map[string]interface{}{"chunks": chunks, "count": len(chunks)})
	}
	fmt.Fprintf(w, "%d chunks\n", len(chunks))
	for i, c := range chunks {
		fmt.Fprintf(w, "%d. %s\n", i+1, c)
	}
	return nil
}

// WriteScore writes one named numeric result such as a BM25 or IDF value.
func WriteScore(w io.Writer, label string, value float64, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"metric": label, "value": value})
	}
	fmt.Fprintf(w, "%s: %.2f\n", label, value)
	return nil
}

// WriteVector writes an embedding, truncated to the first n values in text mode.
func WriteVector(w io.Writer, vec []float32, n int, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"dimensions": len(vec), "embedding": vec})
	}
	shown := vec
	if n > 0 && len(shown) > n {
		shown = shown[:n]
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	suffix := ""
	if len(shown) < len(vec) {
		suffix = ", ..."
	}
	fmt.Fprintf(w, "Dimensions: %d\n[%s%s]\n", len(vec), strings.Join(parts, ", "), suffix)
	return nil
}
