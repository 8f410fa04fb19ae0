package ranking

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/rankd/internal/models"
)

// DefaultStages returns the scoring pipeline in evaluation order.
func DefaultStages() []Stage {
	return []Stage{
		FieldMatchStage{},
		EngagementStage{},
		QualityStage{},
		RecencyStage{},
		CompositeStage{},
		ExplanationStage{},
	}
}

// FieldMatchStage awards points per field for the best matching term.
// Semantic candidates (Similarity > 0) score 100 points per unit of similarity instead.
type FieldMatchStage struct{}

func (FieldMatchStage) Name() string { return "field_match" }

func (FieldMatchStage) Apply(ctx *ScoringContext, rec *ScoreRecord) {
	cfg := ctx.Config
	if ctx.Similarity > 0 {
		rec.Relevance = math.Min(ctx.Similarity*100, cfg.MaxRelevance)
		return
	}
	if ctx.Query == "" {
		return
	}
	doc := ctx.Document

	type candidate struct {
		term string
		typ  MatchType
		mult float64
	}
	cands := []candidate{{ctx.Query, MatchTypePartial, 1}}
	for _, v := range ctx.Expansion.FuzzyVariants {
		cands = append(cands, candidate{v, MatchTypeFuzzy, cfg.FuzzyMultiplier})
	}
	for _, v := range ctx.Expansion.Synonyms {
		cands = append(cands, candidate{v, MatchTypeSynonym, cfg.SynonymMultiplier})
	}
	for _, w := range ctx.Words {
		cands = append(cands, candidate{w, MatchTypeWord, cfg.WordMultiplier})
	}

	var relevance float64
	for _, f := range fieldsFor(ctx.Kind) {
		var best FieldMatch
		for _, c := range cands {
			points, exact := fieldPoints(cfg, f, doc, c.term)
			if points == 0 {
				continue
			}
			typ := c.typ
			if exact && typ == MatchTypePartial {
				typ = MatchTypeExact
			}
			if p := points * c.mult; p > best.Points {
				best = FieldMatch{Field: f, Type: typ, Term: c.term, Points: p}
			}
		}
		if best.Points > 0 {
			best.Points *= ctx.Weights.Field(f)
			rec.Matches = append(rec.Matches, best)
			relevance += best.Points
		}
	}
	rec.Relevance = math.Min(relevance, cfg.MaxRelevance)
	if strings.EqualFold(strings.TrimSpace(doc.Name), ctx.Query) {
		rec.ExactBonus = cfg.ExactMatchBonus
	}
}

// fieldsFor lists the scored fields of kind in explanation priority order.
func fieldsFor(kind models.Kind) []models.Field {
	fields := []models.Field{models.FieldName, models.FieldTags}
	seen := map[models.Field]bool{models.FieldName: true, models.FieldTags: true}
	for _, f := range []models.Field{models.FieldCategory, models.FieldTagline} {
		fields = append(fields, f)
		seen[f] = true
	}
	for _, f := range kind.Profile().Secondary {
		if !seen[f] {
			fields = append(fields, f)
			seen[f] = true
		}
	}
	return append(fields, models.FieldDescription)
}

// fieldPoints returns the points term earns on field f and whether it was an exact match.
func fieldPoints(cfg *RankingConfig, f models.Field, doc *models.Document, term string) (float64, bool) {
	switch f {
	case models.FieldName:
		name := strings.ToLower(doc.Name)
		if strings.TrimSpace(name) == term {
			return cfg.ExactNameScore, true
		}
		if strings.Contains(name, term) {
			return cfg.PartialNameScore, false
		}
	case models.FieldTags:
		var partial bool
		for _, t := range doc.Tags {
			lt := strings.ToLower(t)
			if lt == term {
				return cfg.ExactTagScore, true
			}
			partial = partial || strings.Contains(lt, term)
		}
		if partial {
			return cfg.PartialTagScore, false
		}
	case models.FieldCategory:
		if containsFold(doc.Category, term) {
			return cfg.CategoryScore, false
		}
	case models.FieldTagline:
		if containsFold(doc.Tagline, term) {
			return cfg.TaglineScore, false
		}
	case models.FieldDescription:
		if containsFold(doc.Description, term) {
			return cfg.DescriptionScore, false
		}
	default:
		if containsFold(doc.Text(f), term) {
			return cfg.SecondaryScore, false
		}
	}
	return 0, false
}

func containsFold(s, term string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), term)
}

// EngagementStage scores upvotes, views (capped) and comments with the kind's weights.
type EngagementStage struct{}

func (EngagementStage) Name() string { return "engagement" }

func (EngagementStage) Apply(ctx *ScoringContext, rec *ScoreRecord) {
	doc, w, cfg := ctx.Document, ctx.Weights.Engagement, ctx.Config
	views := min(max(doc.Views, 0), cfg.ViewCap)
	score := float64(max(doc.Upvotes, 0))*w.Upvote +
		float64(views)*w.View +
		float64(max(doc.Comments, 0))*w.Comment
	rec.Engagement = math.Min(score, cfg.MaxEngagement)
}

// QualityStage rewards images, verification and substantial descriptions.
type QualityStage struct{}

func (QualityStage) Name() string { return "quality" }

func (QualityStage) Apply(ctx *ScoringContext, rec *ScoreRecord) {
	doc, cfg := ctx.Document, ctx.Config
	var q float64
	if doc.Image != "" {
		q += cfg.ImageScore
	}
	if doc.Verified {
		q += cfg.VerifiedScore
	}
	if utf8.RuneCountInString(doc.Description) > cfg.LongDescriptionChars {
		q += cfg.LongDescriptionScore
	}
	rec.Quality = q
}

// RecencyStage decays linearly from RecencyMaxScore to zero over the recency window.
type RecencyStage struct{}

func (RecencyStage) Name() string { return "recency" }

func (RecencyStage) Apply(ctx *ScoringContext, rec *ScoreRecord) {
	if ctx.Document.CreatedAt.IsZero() {
		return
	}
	window := time.Duration(ctx.Config.RecencyWindowDays) * 24 * time.Hour
	age := ctx.Document.Age(ctx.Now)
	if age >= window {
		return
	}
	rec.Recency = ctx.Config.RecencyMaxScore * (1 - float64(age)/float64(window))
}

// CompositeStage blends the components into the final score.
type CompositeStage struct{}

func (CompositeStage) Name() string { return "composite" }

func (CompositeStage) Apply(ctx *ScoringContext, rec *ScoreRecord) {
	cfg := ctx.Config
	rec.Final = cfg.RelevanceWeight*rec.Relevance +
		cfg.EngagementWeight*rec.Engagement +
		cfg.QualityWeight*rec.Quality +
		cfg.RecencyWeight*rec.Recency +
		rec.ExactBonus
}
