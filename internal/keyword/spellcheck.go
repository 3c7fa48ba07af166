package keyword

import (
	"sort"
	"strings"
	"sync"
)

// Suggestion is a dictionary token close to a query token.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
}

// SpellChecker proposes corrected queries from the tokens of a TermDictionary.
// Query words are normalized with the index tokenizer before lookup, so
// suggestions are expressed as index tokens.
type SpellChecker struct {
	dict           TermDictionary
	tokenizer      *Tokenizer
	maxDistance    int
	maxSuggestions int

	mu     sync.RWMutex
	terms  []string
	loaded bool
}

// SpellCheckerOption configures a SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the largest edit distance considered a typo.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMaxSuggestions caps Suggest results.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker over dict.
func NewSpellChecker(dict TermDictionary, tokenizer *Tokenizer, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dict:           dict,
		tokenizer:      tokenizer,
		maxDistance:    2,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh reloads the dictionary terms. Call it after the index is rebuilt.
func (s *SpellChecker) Refresh() error {
	terms, err := s.dict.GetAllTerms()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.terms = terms
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *SpellChecker) snapshot() ([]string, error) {
	s.mu.RLock()
	loaded, terms := s.loaded, s.terms
	s.mu.RUnlock()
	if loaded {
		return terms, nil
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terms, nil
}

// Suggest returns dictionary tokens within the edit distance of token,
// closest first, then most frequent, then alphabetical.
func (s *SpellChecker) Suggest(token string) ([]Suggestion, error) {
	terms, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	n := len([]rune(token))
	var out []Suggestion
	for _, term := range terms {
		if term == token {
			continue
		}
		diff := len([]rune(term)) - n
		if diff > s.maxDistance || -diff > s.maxDistance {
			continue
		}
		d := LevenshteinDistance(token, term)
		if d > s.maxDistance {
			continue
		}
		freq, err := s.dict.GetTermFrequency(term)
		if err != nil || freq == 0 {
			continue
		}
		out = append(out, Suggestion{Term: term, Distance: d, Frequency: freq})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out, nil
}

// Correct rewrites the query's tokens, replacing each unknown token with its
// best suggestion. The bool reports whether anything was replaced.
func (s *SpellChecker) Correct(query string) (string, bool, error) {
	tokens := s.tokenizer.Tokenize(query)
	corrected := make([]string, 0, len(tokens))
	changed := false
	for _, tok := range tokens {
		ok, err := s.dict.ContainsTerm(tok)
		if err != nil {
			return "", false, err
		}
		if ok {
			corrected = append(corrected, tok)
			continue
		}
		suggestions, err := s.Suggest(tok)
		if err != nil {
			return "", false, err
		}
		if len(suggestions) == 0 {
			corrected = append(corrected, tok)
			continue
		}
		corrected = append(corrected, suggestions[0].Term)
		changed = true
	}
	return strings.Join(corrected, " "), changed, nil
}
