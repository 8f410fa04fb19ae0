package criteria

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/pkg/utils"
)

// Clause priorities, most specific first.
const (
	PriorityExactName = iota + 1
	PriorityExactTag
	PriorityPartialName
	PriorityPartialTag
	PrioritySecondary
	PriorityDescription
	PriorityVariant
	PriorityWord
)

// Filter keys accepted by Build. Unknown keys are ignored.
const (
	FilterCategory    = "category"
	FilterMinPrice    = "min_price"
	FilterMaxPrice    = "max_price"
	FilterFrom        = "from"
	FilterTo          = "to"
	FilterPricingType = "pricing_type"
	FilterOwner       = "owner"
	FilterRole        = "role"
	FilterExcludeID   = "exclude_id"
)

// Build returns the criteria for kind from an expanded query and filters.
// An empty query yields no disjunction, so every visible document matches.
func Build(kind models.Kind, exp models.TermExpansion, filters map[string]string) (*Criteria, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", models.ErrInvalidInput, kind)
	}
	profile := kind.Profile()
	c := &Criteria{
		Kind: kind,
		Base: []Clause{{Field: models.FieldStatus, Op: OpEquals, Value: profile.Status, Source: SourceBase}},
	}

	q := utils.NormalizeQuery(exp.Original)
	if q != "" {
		c.Any = textClauses(q, profile)
		for _, v := range exp.FuzzyVariants {
			c.Any = append(c.Any, variantClauses(v, profile, SourceFuzzy)...)
		}
		for _, v := range exp.Synonyms {
			c.Any = append(c.Any, variantClauses(v, profile, SourceSynonym)...)
		}
		if words := strings.Fields(q); len(words) > 1 {
			for _, w := range words {
				if utf8.RuneCountInString(w) <= 2 {
					continue
				}
				for _, f := range []models.Field{models.FieldName, models.FieldTags, models.FieldDescription} {
					c.Any = append(c.Any, Clause{Field: f, Op: OpContains, Value: w, Priority: PriorityWord, Source: SourceWord})
				}
			}
		}
	}

	fc, err := filterClauses(filters)
	if err != nil {
		return nil, err
	}
	c.Filters = fc
	return c, nil
}

// textClauses returns clauses (1) to (6) for q.
func textClauses(q string, profile models.Profile) []Clause {
	out := []Clause{
		{Field: models.FieldName, Op: OpEquals, Value: q, Priority: PriorityExactName, Source: SourceExact},
		{Field: models.FieldTags, Op: OpEquals, Value: q, Priority: PriorityExactTag, Source: SourceExact},
		{Field: models.FieldName, Op: OpContains, Value: q, Priority: PriorityPartialName, Source: SourcePartial},
		{Field: models.FieldTags, Op: OpContains, Value: q, Priority: PriorityPartialTag, Source: SourcePartial},
	}
	for _, f := range profile.Secondary {
		out = append(out, Clause{Field: f, Op: OpContains, Value: q, Priority: PrioritySecondary, Source: SourcePartial})
	}
	return append(out, Clause{Field: models.FieldDescription, Op: OpContains, Value: q, Priority: PriorityDescription, Source: SourcePartial})
}

// variantClauses returns the partial name, tag and secondary clauses for a variant.
func variantClauses(v string, profile models.Profile, src Source) []Clause {
	out := []Clause{
		{Field: models.FieldName, Op: OpContains, Value: v, Priority: PriorityVariant, Source: src},
		{Field: models.FieldTags, Op: OpContains, Value: v, Priority: PriorityVariant, Source: src},
	}
	for _, f := range profile.Secondary {
		out = append(out, Clause{Field: f, Op: OpContains, Value: v, Priority: PriorityVariant, Source: src})
	}
	return out
}

func filterClauses(filters map[string]string) ([]Clause, error) {
	var out []Clause
	get := func(k string) string { return strings.TrimSpace(filters[k]) }

	if v := get(FilterCategory); v != "" {
		out = append(out, Clause{Field: models.FieldCategory, Op: OpEquals, Value: v, Source: SourceFilter})
	}

	minPrice, err := parseFloat(FilterMinPrice, get(FilterMinPrice))
	if err != nil {
		return nil, err
	}
	maxPrice, err := parseFloat(FilterMaxPrice, get(FilterMaxPrice))
	if err != nil {
		return nil, err
	}
	if minPrice != nil || maxPrice != nil {
		if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
			return nil, fmt.Errorf("%w: min_price %v exceeds max_price %v", models.ErrInvalidInput, *minPrice, *maxPrice)
		}
		out = append(out, Clause{Field: models.FieldPrice, Op: OpRange, Min: minPrice, Max: maxPrice, Source: SourceFilter})
	}

	from, err := parseTime(FilterFrom, get(FilterFrom))
	if err != nil {
		return nil, err
	}
	to, err := parseTime(FilterTo, get(FilterTo))
	if err != nil {
		return nil, err
	}
	if from != nil || to != nil {
		out = append(out, Clause{Field: models.FieldCreatedAt, Op: OpRange, From: from, To: to, Source: SourceFilter})
	}

	if v := get(FilterPricingType); v != "" {
		var values []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		out = append(out, Clause{Field: models.FieldPricingType, Op: OpIn, Values: values, Source: SourceFilter})
	}
	if v := get(FilterOwner); v != "" {
		out = append(out, Clause{Field: models.FieldOwner, Op: OpEquals, Value: v, Source: SourceFilter})
	}
	if v := get(FilterRole); v != "" {
		out = append(out, Clause{Field: models.FieldRole, Op: OpEquals, Value: v, Source: SourceFilter})
	}
	if v := get(FilterExcludeID); v != "" {
		out = append(out, Clause{Field: models.FieldID, Op: OpNotEquals, Value: v, Source: SourceFilter})
	}
	return out, nil
}

func parseFloat(key, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number: %q", models.ErrInvalidInput, key, s)
	}
	return &f, nil
}

func parseTime(key, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s must be RFC3339 or YYYY-MM-DD: %q", models.ErrInvalidInput, key, s)
}
