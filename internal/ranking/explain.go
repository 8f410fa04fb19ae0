package ranking

import (
	"fmt"
	"hash/fnv"

	"github.com/hyperjump/rankd/internal/models"
)

// PickVariant deterministically maps seed fields to an index in [0, n).
func PickVariant(n int, seed ...string) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	for _, s := range seed {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	return int(h.Sum32() % uint32(n))
}

var phrases = map[models.Reason][]string{
	models.ReasonName: {
		"Name matches %q",
		"%q appears in the name",
		"Matched on name for %q",
	},
	models.ReasonTag: {
		"Tagged with %q",
		"Tags include %q",
		"Matched a tag for %q",
	},
	models.ReasonCategory: {
		"Listed under a category matching %q",
		"Category matches %q",
	},
	models.ReasonTagline: {
		"Tagline mentions %q",
		"%q appears in the tagline",
	},
	models.ReasonDescription: {
		"Description mentions %q",
		"%q appears in the description",
	},
	models.ReasonSemantic: {
		"Similar to %q",
		"Related to %q",
		"Conceptually close to %q",
	},
	models.ReasonOther: {
		"Details match %q",
		"Matched on profile details for %q",
	},
}

// reasonOrder maps fields to explanation reasons by descending priority.
var reasonOrder = []struct {
	field  models.Field
	reason models.Reason
}{
	{models.FieldName, models.ReasonName},
	{models.FieldTags, models.ReasonTag},
	{models.FieldCategory, models.ReasonCategory},
	{models.FieldTagline, models.ReasonTagline},
	{models.FieldDescription, models.ReasonDescription},
}

// ExplanationStage records matched fields and picks the primary reason and summary.
type ExplanationStage struct{}

func (ExplanationStage) Name() string { return "explanation" }

func (ExplanationStage) Apply(ctx *ScoringContext, rec *ScoreRecord) {
	exp := models.Explanation{PrimaryReason: models.ReasonOther}
	matched := make(map[models.Field]FieldMatch, len(rec.Matches))
	for _, m := range rec.Matches {
		exp.MatchedFields = append(exp.MatchedFields, m.Field)
		matched[m.Field] = m
		switch m.Type {
		case MatchTypeFuzzy:
			exp.Fuzzy = true
		case MatchTypeSynonym:
			exp.Synonym = true
		}
	}

	if ctx.Similarity > 0 {
		exp.Semantic = true
		exp.PrimaryReason = models.ReasonSemantic
	} else {
		for _, r := range reasonOrder {
			if _, ok := matched[r.field]; ok {
				exp.PrimaryReason = r.reason
				break
			}
		}
	}

	term := ctx.Query
	if m, ok := matched[reasonField(exp.PrimaryReason)]; ok && m.Type != MatchTypeExact && m.Type != MatchTypePartial {
		term = m.Term
	}
	options := phrases[exp.PrimaryReason]
	summary := fmt.Sprintf(options[PickVariant(len(options), ctx.Document.ID, ctx.Query, string(exp.PrimaryReason))], term)
	switch {
	case exp.Fuzzy:
		summary += " (closest spelling)"
	case exp.Synonym:
		summary += " (related term)"
	}
	exp.Summary = summary
	rec.Explanation = exp
}

func reasonField(r models.Reason) models.Field {
	for _, ro := range reasonOrder {
		if ro.reason == r {
			return ro.field
		}
	}
	return ""
}
