// Package ranking scores matched documents with an ordered list of stages:
// field matching, engagement, quality, recency, the composite blend and the explanation.
package ranking

import (
	"strings"
	"time"

	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/pkg/utils"
)

// MatchType represents how a field matched the query.
type MatchType int

const (
	MatchTypeNone MatchType = iota
	// MatchTypeWord indicates one word of a multi-word query matched.
	MatchTypeWord
	// MatchTypeFuzzy indicates a fuzzy spelling variant matched.
	MatchTypeFuzzy
	// MatchTypeSynonym indicates a synonym matched.
	MatchTypeSynonym
	// MatchTypePartial indicates the query is a substring of the field.
	MatchTypePartial
	// MatchTypeExact indicates the field equals the query.
	MatchTypeExact
)

// String returns a string representation of the match type.
func (m MatchType) String() string {
	switch m {
	case MatchTypeNone:
		return "none"
	case MatchTypeWord:
		return "word"
	case MatchTypeFuzzy:
		return "fuzzy"
	case MatchTypeSynonym:
		return "synonym"
	case MatchTypePartial:
		return "partial"
	case MatchTypeExact:
		return "exact"
	default:
		return "unknown"
	}
}

// FieldMatch is the best match found on one field.
type FieldMatch struct {
	Field  models.Field
	Type   MatchType
	Term   string
	Points float64
}

// ScoringContext provides everything a stage needs to score one document.
type ScoringContext struct {
	Kind      models.Kind
	Query     string
	Words     []string
	Expansion models.TermExpansion
	Document  *models.Document
	Now       time.Time
	Weights   KindWeights
	Config    *RankingConfig
	// Similarity is set for semantic-only candidates.
	Similarity float64
}

// NewScoringContext creates a context for doc under the expanded query.
func NewScoringContext(kind models.Kind, exp models.TermExpansion, doc *models.Document, now time.Time, cfg *RankingConfig) *ScoringContext {
	q := utils.NormalizeQuery(exp.Original)
	var words []string
	if fields := strings.Fields(q); len(fields) > 1 {
		for _, w := range fields {
			if len([]rune(w)) > 2 {
				words = append(words, w)
			}
		}
	}
	return &ScoringContext{
		Kind:      kind,
		Query:     q,
		Words:     words,
		Expansion: exp,
		Document:  doc,
		Now:       now,
		Weights:   WeightsFor(kind),
		Config:    cfg,
	}
}

// ScoreRecord accumulates stage outputs for one document.
type ScoreRecord struct {
	Relevance   float64
	Engagement  float64
	Quality     float64
	Recency     float64
	ExactBonus  float64
	Final       float64
	Matches     []FieldMatch
	Explanation models.Explanation
}

// Stage is one step of the scoring pipeline.
type Stage interface {
	// Apply reads the context and writes its component into rec.
	Apply(ctx *ScoringContext, rec *ScoreRecord)
	// Name returns the name of the stage for debugging/logging.
	Name() string
}
