package ranking

import (
	"sort"
	"time"

	"github.com/hyperjump/rankd/internal/models"
)

// Ranker runs the scoring stages over documents.
type Ranker struct {
	config *RankingConfig
	stages []Stage
}

// NewRanker creates a new Ranker with the given configuration.
func NewRanker(config *RankingConfig) *Ranker {
	if config == nil {
		config = DefaultRankingConfig()
	}
	config.ApplyDefaults()
	return &Ranker{config: config, stages: DefaultStages()}
}

// WithStages replaces the scoring pipeline.
func (r *Ranker) WithStages(stages []Stage) *Ranker {
	r.stages = stages
	return r
}

// Config returns the ranking configuration.
func (r *Ranker) Config() *RankingConfig {
	return r.config
}

// Score runs every stage for one lexical match.
func (r *Ranker) Score(kind models.Kind, exp models.TermExpansion, doc *models.Document, now time.Time) *models.ScoredResult {
	ctx := NewScoringContext(kind, exp, doc, now, r.config)
	return r.run(ctx)
}

// ScoreSemantic scores a document found only by vector similarity.
func (r *Ranker) ScoreSemantic(kind models.Kind, exp models.TermExpansion, doc *models.Document, similarity float64, now time.Time) *models.ScoredResult {
	ctx := NewScoringContext(kind, exp, doc, now, r.config)
	ctx.Similarity = similarity
	res := r.run(ctx)
	res.SemanticScore = similarity
	return res
}

// Breakdown runs the pipeline and returns the raw record, for debugging.
func (r *Ranker) Breakdown(kind models.Kind, exp models.TermExpansion, doc *models.Document, now time.Time) *ScoreRecord {
	ctx := NewScoringContext(kind, exp, doc, now, r.config)
	rec := &ScoreRecord{}
	for _, s := range r.stages {
		s.Apply(ctx, rec)
	}
	return rec
}

func (r *Ranker) run(ctx *ScoringContext) *models.ScoredResult {
	rec := &ScoreRecord{}
	for _, s := range r.stages {
		s.Apply(ctx, rec)
	}
	return &models.ScoredResult{
		Document:        ctx.Document,
		RelevanceScore:  rec.Relevance,
		EngagementScore: rec.Engagement,
		QualityScore:    rec.Quality,
		RecencyScore:    rec.Recency,
		FinalScore:      rec.Final,
		Explanation:     rec.Explanation,
	}
}

// Rank scores docs and returns them sorted by final score, ties broken by id.
func (r *Ranker) Rank(kind models.Kind, exp models.TermExpansion, docs []*models.Document, now time.Time) []*models.ScoredResult {
	out := make([]*models.ScoredResult, 0, len(docs))
	for _, d := range docs {
		out = append(out, r.Score(kind, exp, d, now))
	}
	SortResults(out)
	return out
}

// SortResults orders results by final score descending, then id ascending.
func SortResults(results []*models.ScoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].Document.ID < results[j].Document.ID
	})
}
