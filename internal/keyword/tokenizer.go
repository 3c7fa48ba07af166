package keyword

import (
	"bufio"
	_ "embed"
	"fmt"
	"os"
	"strings"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// punctuation is the ASCII punctuation set stripped before splitting.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

//go:embed stopwords.txt
var defaultStopWords string

// Tokenizer turns free text into normalized tokens: lower-case, strip
// punctuation, split on whitespace, drop stop words, Porter-stem, drop empties.
// It is stateless apart from its stop-word set and safe for concurrent use.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the given stop words.
func NewTokenizer(stopWords []string) *Tokenizer {
	return &Tokenizer{stopWords: BuildStopWordMap(stopWords)}
}

// NewDefaultTokenizer creates a tokenizer with the built-in English stop-word list.
func NewDefaultTokenizer() *Tokenizer {
	return NewTokenizer(DefaultStopWords())
}

// DefaultStopWords returns the built-in English stop-word list.
func DefaultStopWords() []string {
	return strings.Fields(defaultStopWords)
}

// LoadStopWords reads one stop word per line from path. Blank lines are skipped.
func LoadStopWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stop words: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stop words: %w", err)
	}
	return words, nil
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// Tokenize returns the normalized tokens of text in order. Text with no
// tokens yields an empty (non-nil) slice.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(text))

	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if _, isStop := t.stopWords[word]; isStop {
			continue
		}
		stemmed := porterstemmer.StemString(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, stemmed)
	}
	return tokens
}

// singleToken tokenizes term and requires exactly one token.
func (t *Tokenizer) singleToken(term string) (string, error) {
	tokens := t.Tokenize(term)
	if len(tokens) != 1 {
		return "", fmt.Errorf("%w: %q yields %d tokens", ErrInvalidTerm, term, len(tokens))
	}
	return tokens[0], nil
}
