package lexical

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/rankd/pkg/utils"
)

// SpellCheckResult contains the result of spell checking a query.
type SpellCheckResult struct {
	OriginalQuery   string   // The normalized query
	CorrectedQuery  string   // The query with each misspelled word replaced by its best suggestion
	HasCorrections  bool     // True if any corrections were made
	MisspelledTerms []string // Words that were not found in the dictionary
}

// Dictionary is the vocabulary a SpellChecker consults.
type Dictionary interface {
	Contains(term string) bool
	Suggest(term string, n int) []string
}

// SpellChecker produces "did you mean" corrections for whole queries.
type SpellChecker struct {
	dict           Dictionary
	maxSuggestions int
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxSuggestions sets the maximum number of corrected queries returned.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker over dict.
func NewSpellChecker(dict Dictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{dict: dict, maxSuggestions: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check replaces unknown words of three or more characters with their closest dictionary term.
func (s *SpellChecker) Check(query string) *SpellCheckResult {
	q := utils.NormalizeQuery(query)
	result := &SpellCheckResult{OriginalQuery: q}
	words := strings.Fields(q)
	corrected := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < minFuzzyLen || s.dict.Contains(w) {
			corrected = append(corrected, w)
			continue
		}
		best := s.dict.Suggest(w, 1)
		if len(best) == 0 {
			corrected = append(corrected, w)
			continue
		}
		result.HasCorrections = true
		result.MisspelledTerms = append(result.MisspelledTerms, w)
		corrected = append(corrected, best[0])
	}
	result.CorrectedQuery = strings.Join(corrected, " ")
	return result
}

// Suggestions returns corrected queries for query, best first. The first entry
// replaces every misspelled word with its best match; further entries vary the
// first misspelled word. Nil when nothing is misspelled.
func (s *SpellChecker) Suggestions(query string) []string {
	result := s.Check(query)
	if !result.HasCorrections {
		return nil
	}
	out := []string{result.CorrectedQuery}
	first := result.MisspelledTerms[0]
	words := strings.Fields(result.CorrectedQuery)
	idx := -1
	for i, w := range strings.Fields(result.OriginalQuery) {
		if w == first {
			idx = i
			break
		}
	}
	if idx < 0 {
		return out
	}
	for _, alt := range s.dict.Suggest(first, s.maxSuggestions)[1:] {
		if len(out) >= s.maxSuggestions {
			break
		}
		variant := append([]string(nil), words...)
		variant[idx] = alt
		out = append(out, strings.Join(variant, " "))
	}
	return out
}
