package models

import (
	"fmt"
	"strings"
)

// MaxLimit caps the page size of a search.
const MaxLimit = 100

// SearchRequest is a free-text query plus structured filters over one or more kinds.
type SearchRequest struct {
	Query   string            `json:"query"`
	Kinds   []Kind            `json:"kinds,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
	Page    int               `json:"page,omitempty"`
	Limit   int               `json:"limit,omitempty"`
}

// Validate sets defaults and rejects out-of-range pages, limits and unknown kinds.
// An empty Kinds list means every kind.
func (r *SearchRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Page == 0 {
		r.Page = 1
	}
	if r.Limit == 0 {
		r.Limit = 10
	}
	if r.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidInput, r.Page)
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be in [1, %d], got %d", ErrInvalidInput, MaxLimit, r.Limit)
	}
	if len(r.Kinds) == 0 {
		r.Kinds = append([]Kind(nil), AllKinds...)
	}
	seen := make(map[Kind]bool, len(r.Kinds))
	kinds := r.Kinds[:0]
	for _, k := range r.Kinds {
		if !k.Valid() {
			return fmt.Errorf("%w: unknown entity kind %q", ErrInvalidInput, k)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	r.Kinds = kinds
	return nil
}

// Skip returns the number of results before the requested page.
func (r *SearchRequest) Skip() int {
	return (r.Page - 1) * r.Limit
}

// TermExpansion holds the fuzzy and synonym variants of a normalized query.
// Original is always set; the variant lists may be empty.
type TermExpansion struct {
	Original      string   `json:"original"`
	FuzzyVariants []string `json:"fuzzy_variants,omitempty"`
	Synonyms      []string `json:"synonyms,omitempty"`
}

// Variants returns fuzzy variants followed by synonyms.
func (t TermExpansion) Variants() []string {
	out := make([]string, 0, len(t.FuzzyVariants)+len(t.Synonyms))
	out = append(out, t.FuzzyVariants...)
	return append(out, t.Synonyms...)
}

// IsSynonym reports whether v came from the synonym table.
func (t TermExpansion) IsSynonym(v string) bool {
	for _, s := range t.Synonyms {
		if s == v {
			return true
		}
	}
	return false
}
