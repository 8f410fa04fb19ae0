// Package lexical expands query terms with fuzzy spelling variants and synonyms.
package lexical

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/pkg/utils"
)

const (
	// WordThreshold is the minimum similarity for a generic dictionary word.
	WordThreshold = 0.7
	// TagThreshold is the minimum similarity for a known tag.
	TagThreshold = 0.8

	defaultMaxVariants = 5
	minFuzzyLen        = 3
)

// Expander produces fuzzy and synonym variants from an in-memory dictionary.
// It is safe for concurrent use; Load swaps the dictionary atomically.
type Expander struct {
	mu       sync.RWMutex
	words    map[string]int
	tags     map[string]int
	synonyms map[string][]string

	// Terms from AddTerms, kept apart so Load can merge them back in.
	harvestedWords map[string]int
	harvestedTags  map[string]int

	maxVariants int
	logger      *zap.Logger
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithMaxVariants caps the fuzzy variants and synonyms returned per expansion.
func WithMaxVariants(n int) ExpanderOption {
	return func(e *Expander) {
		if n > 0 {
			e.maxVariants = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ExpanderOption {
	return func(e *Expander) { e.logger = l }
}

// NewExpander creates an expander over lex.
func NewExpander(lex *Lexicon, opts ...ExpanderOption) *Expander {
	e := &Expander{
		maxVariants:    defaultMaxVariants,
		harvestedWords: make(map[string]int),
		harvestedTags:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.LoggerOrNop(e.logger)
	e.Load(lex)
	return e
}

// Load replaces the dictionary with the contents of lex plus every term
// added through AddTerms.
func (e *Expander) Load(lex *Lexicon) {
	if lex == nil {
		lex = &Lexicon{}
	}
	words := make(map[string]int)
	tags := make(map[string]int)
	synonyms := make(map[string][]string)
	for _, w := range lex.Words {
		addTerm(words, w)
	}
	for _, t := range lex.Tags {
		addTerm(tags, t)
	}
	for k, vs := range lex.Synonyms {
		k = utils.NormalizeQuery(k)
		for _, v := range vs {
			v = utils.NormalizeQuery(v)
			if k == "" || v == "" || k == v {
				continue
			}
			synonyms[k] = appendUnique(synonyms[k], v)
			synonyms[v] = appendUnique(synonyms[v], k)
		}
	}

	e.mu.Lock()
	for w, n := range e.harvestedWords {
		words[w] += n
	}
	for t, n := range e.harvestedTags {
		tags[t] += n
	}
	e.words, e.tags, e.synonyms = words, tags, synonyms
	e.mu.Unlock()
}

// AddTerms adds words and tags harvested from stored documents. Repeated
// terms raise their frequency, which orders spelling suggestions.
func (e *Expander) AddTerms(words, tags []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range words {
		for _, part := range strings.Fields(w) {
			addTerm(e.words, part)
			addTerm(e.harvestedWords, part)
		}
	}
	for _, t := range tags {
		addTerm(e.tags, t)
		addTerm(e.harvestedTags, t)
	}
}

func addTerm(dict map[string]int, term string) {
	term = utils.NormalizeQuery(term)
	if utf8.RuneCountInString(term) < 2 {
		return
	}
	dict[term]++
}

// Expand returns the variants of a normalized query. Multi-word queries are
// also expanded word by word, skipping words of two characters or fewer.
// An internal failure yields an expansion with no variants.
func (e *Expander) Expand(query string) (exp models.TermExpansion) {
	q := utils.NormalizeQuery(query)
	exp.Original = q
	if q == "" {
		return exp
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("term expansion failed", zap.String("query", q), zap.Any("panic", r))
			exp = models.TermExpansion{Original: q}
		}
	}()

	terms := []string{q}
	words := strings.Fields(q)
	if len(words) > 1 {
		for _, w := range words {
			if utf8.RuneCountInString(w) > 2 {
				terms = append(terms, w)
			}
		}
	}

	exclude := map[string]bool{q: true}
	for _, w := range words {
		exclude[w] = true
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var fuzzy []scored
	var synonyms []string
	for _, t := range terms {
		fuzzy = append(fuzzy, e.fuzzyLocked(t)...)
		synonyms = append(synonyms, e.synonyms[t]...)
	}
	sortScored(fuzzy)

	seen := make(map[string]bool)
	for _, f := range fuzzy {
		if exclude[f.term] || seen[f.term] || len(exp.FuzzyVariants) >= e.maxVariants {
			continue
		}
		seen[f.term] = true
		exp.FuzzyVariants = append(exp.FuzzyVariants, f.term)
	}
	for _, s := range synonyms {
		if exclude[s] || seen[s] || len(exp.Synonyms) >= e.maxVariants {
			continue
		}
		seen[s] = true
		exp.Synonyms = append(exp.Synonyms, s)
	}
	return exp
}

type scored struct {
	term  string
	score float64
}

func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].term < s[j].term
	})
}

// fuzzyLocked finds dictionary terms similar to t. Caller holds e.mu.
func (e *Expander) fuzzyLocked(t string) []scored {
	n := utf8.RuneCountInString(t)
	if n < minFuzzyLen {
		return nil
	}
	var out []scored
	match := func(dict map[string]int, threshold float64) {
		for term := range dict {
			if term == t {
				continue
			}
			// Length difference alone can rule a term out.
			m := utf8.RuneCountInString(term)
			if d := float64(abs(m-n)) / float64(max(m, n)); 1-d < threshold {
				continue
			}
			if s := Similarity(t, term); s >= threshold {
				out = append(out, scored{term: term, score: s})
			}
		}
	}
	match(e.words, WordThreshold)
	match(e.tags, TagThreshold)
	return out
}

// Suggest returns up to n dictionary terms closest to term, best first,
// using the generic word threshold for all terms.
func (e *Expander) Suggest(term string, n int) []string {
	t := utils.NormalizeQuery(term)
	e.mu.RLock()
	defer e.mu.RUnlock()
	var cands []scored
	for _, dict := range []map[string]int{e.words, e.tags} {
		for w, freq := range dict {
			if w == t {
				continue
			}
			s := Similarity(t, w)
			if s >= WordThreshold {
				// Frequency breaks ties between equally close terms.
				cands = append(cands, scored{term: w, score: s + float64(freq)*1e-6})
			}
		}
	}
	sortScored(cands)
	out := make([]string, 0, n)
	for _, c := range cands {
		if len(out) == n {
			break
		}
		if !contains(out, c.term) {
			out = append(out, c.term)
		}
	}
	return out
}

// Contains reports whether term is in the dictionary or synonym table.
func (e *Expander) Contains(term string) bool {
	t := utils.NormalizeQuery(term)
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, w := e.words[t]
	_, tg := e.tags[t]
	_, s := e.synonyms[t]
	return w || tg || s
}

// Frequency returns how often term was added to the dictionary.
func (e *Expander) Frequency(term string) int {
	t := utils.NormalizeQuery(term)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.words[t] + e.tags[t]
}

// Size returns the number of distinct dictionary terms.
func (e *Expander) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.words) + len(e.tags)
}

func appendUnique(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	return append(list, v)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
