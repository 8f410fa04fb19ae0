// Package criteria builds per-kind match predicates from a query and filters
// and evaluates them against documents.
package criteria

import (
	"strings"
	"time"

	"github.com/hyperjump/rankd/internal/models"
)

// Op is a clause comparison.
type Op int

const (
	// OpEquals compares case-insensitively; on tags it matches any tag.
	OpEquals Op = iota
	// OpContains is a case-insensitive substring match; on tags it matches any tag.
	OpContains
	// OpIn matches when the field equals one of Values.
	OpIn
	// OpRange bounds price (Min, Max) or creation time (From, To), inclusive.
	OpRange
	// OpNotEquals matches when the field differs from Value.
	OpNotEquals
)

func (o Op) String() string {
	switch o {
	case OpEquals:
		return "equals"
	case OpContains:
		return "contains"
	case OpIn:
		return "in"
	case OpRange:
		return "range"
	case OpNotEquals:
		return "not_equals"
	}
	return "unknown"
}

// Source records why a clause exists.
type Source string

const (
	SourceBase    Source = "base"
	SourceExact   Source = "exact"
	SourcePartial Source = "partial"
	SourceFuzzy   Source = "fuzzy"
	SourceSynonym Source = "synonym"
	SourceWord    Source = "word"
	SourceFilter  Source = "filter"
)

// Clause is a single predicate on one document field.
type Clause struct {
	Field    models.Field
	Op       Op
	Value    string
	Values   []string
	Min      *float64
	Max      *float64
	From     *time.Time
	To       *time.Time
	Priority int
	Source   Source
}

// Criteria matches documents of one kind: every Base and Filters clause must
// hold, and when Any is non-empty at least one of its clauses must hold.
// Any is ordered by ascending Priority.
type Criteria struct {
	Kind    models.Kind
	Base    []Clause
	Any     []Clause
	Filters []Clause
}

// Match reports whether doc satisfies the criteria.
func (c *Criteria) Match(doc *models.Document) bool {
	if doc.Kind != "" && doc.Kind != c.Kind {
		return false
	}
	for _, cl := range c.Base {
		if !cl.Match(doc) {
			return false
		}
	}
	for _, cl := range c.Filters {
		if !cl.Match(doc) {
			return false
		}
	}
	if len(c.Any) == 0 {
		return true
	}
	for _, cl := range c.Any {
		if cl.Match(doc) {
			return true
		}
	}
	return false
}

// Rank returns the lowest Priority among the Any clauses doc satisfies, or 0
// when c has no disjunction. Stores order candidates by it so the most
// specific matches survive a candidate limit.
func (c *Criteria) Rank(doc *models.Document) int {
	for _, cl := range c.Any {
		if cl.Match(doc) {
			return cl.Priority
		}
	}
	if len(c.Any) == 0 {
		return 0
	}
	return NoMatch
}

// NoMatch ranks documents that satisfy none of the Any clauses.
const NoMatch = 1 << 10

// Unfiltered returns a copy without the query disjunction, matching every
// visible document that passes the filters.
func (c *Criteria) Unfiltered() *Criteria {
	return &Criteria{Kind: c.Kind, Base: c.Base, Filters: c.Filters}
}

// Match reports whether doc satisfies the clause.
func (cl Clause) Match(doc *models.Document) bool {
	switch cl.Op {
	case OpEquals:
		return cl.anyText(doc, func(s string) bool { return strings.EqualFold(s, cl.Value) })
	case OpContains:
		needle := strings.ToLower(cl.Value)
		return cl.anyText(doc, func(s string) bool { return strings.Contains(strings.ToLower(s), needle) })
	case OpIn:
		return cl.anyText(doc, func(s string) bool {
			for _, v := range cl.Values {
				if strings.EqualFold(s, v) {
					return true
				}
			}
			return false
		})
	case OpNotEquals:
		return !cl.anyText(doc, func(s string) bool { return strings.EqualFold(s, cl.Value) })
	case OpRange:
		return cl.matchRange(doc)
	}
	return false
}

func (cl Clause) anyText(doc *models.Document, pred func(string) bool) bool {
	if cl.Field == models.FieldTags {
		for _, t := range doc.Tags {
			if pred(t) {
				return true
			}
		}
		return false
	}
	return pred(doc.Text(cl.Field))
}

func (cl Clause) matchRange(doc *models.Document) bool {
	switch cl.Field {
	case models.FieldPrice:
		if cl.Min != nil && doc.Price < *cl.Min {
			return false
		}
		if cl.Max != nil && doc.Price > *cl.Max {
			return false
		}
		return true
	case models.FieldCreatedAt:
		if cl.From != nil && doc.CreatedAt.Before(*cl.From) {
			return false
		}
		if cl.To != nil && doc.CreatedAt.After(*cl.To) {
			return false
		}
		return true
	}
	return false
}
