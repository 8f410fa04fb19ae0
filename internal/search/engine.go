// Package search runs multi-kind ranked search: criteria matching, scoring,
// semantic blending and result caching.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/rankd/internal/cache"
	"github.com/hyperjump/rankd/internal/config"
	"github.com/hyperjump/rankd/internal/criteria"
	"github.com/hyperjump/rankd/internal/embedding"
	"github.com/hyperjump/rankd/internal/lexical"
	"github.com/hyperjump/rankd/internal/metrics"
	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/ranking"
	"github.com/hyperjump/rankd/internal/storage"
	"github.com/hyperjump/rankd/pkg/utils"
)

// Engine runs ranked search over every requested kind concurrently.
type Engine struct {
	store    storage.DocumentStore
	expander *lexical.Expander
	speller  *lexical.SpellChecker
	embedder *embedding.Engine
	ranker   *ranking.Ranker
	cache    *cache.Orchestrator
	config   *config.SearchConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a search engine with the given dependencies.
// A nil orchestrator disables result caching.
func NewEngine(
	store storage.DocumentStore,
	expander *lexical.Expander,
	embedder *embedding.Engine,
	ranker *ranking.Ranker,
	orchestrator *cache.Orchestrator,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) *Engine {
	if cfg == nil {
		cfg = &config.SearchConfig{}
	}
	return &Engine{
		store:    store,
		expander: expander,
		speller:  lexical.NewSpellChecker(expander, lexical.WithMaxSuggestions(cfg.MaxSuggestions)),
		embedder: embedder,
		ranker:   ranker,
		cache:    orchestrator,
		config:   cfg,
		logger:   utils.LoggerOrNop(logger),
		now:      time.Now,
	}
}

// Search validates a copy of in and returns one ranked page per requested
// kind. A kind whose search fails is returned empty and listed in Degraded,
// as is a kind served without its semantic pass; malformed filters fail the
// whole request. Cancellation of ctx aborts every kind and returns ctx.Err().
func (e *Engine) Search(ctx context.Context, in *models.SearchRequest) (*models.SearchResponse, error) {
	startTime := time.Now()
	r := *in
	r.Kinds = append([]models.Kind(nil), in.Kinds...)
	req := &r
	if req.Limit == 0 && e.config.DefaultLimit > 0 {
		req.Limit = e.config.DefaultLimit
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exp := e.expander.Expand(req.Query)
	resp := &models.SearchResponse{
		RequestID: uuid.NewString(),
		Query:     exp.Original,
		Results:   make(map[models.Kind]models.KindResults, len(req.Kinds)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range req.Kinds {
		g.Go(func() error {
			res, err := e.searchKind(gctx, kind, exp, req)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, models.ErrInvalidInput) {
					return err
				}
				e.logger.Warn("kind search failed, returning empty results",
					zap.String("request_id", resp.RequestID),
					zap.String("kind", string(kind)),
					zap.Error(err))
				res = models.KindResults{Results: []*models.ScoredResult{}, Partial: true}
			}
			mu.Lock()
			if res.Partial {
				resp.Degraded = append(resp.Degraded, kind)
			}
			resp.Results[kind] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(resp.Degraded, func(i, j int) bool { return resp.Degraded[i] < resp.Degraded[j] })

	if exp.Original != "" {
		resp.Suggestions = e.speller.Suggestions(exp.Original)
	}
	resp.QueryTime = time.Since(startTime).Milliseconds()
	e.logger.Debug("search completed",
		zap.String("request_id", resp.RequestID),
		zap.String("query", exp.Original),
		zap.Int("kinds", len(req.Kinds)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

func (e *Engine) searchKind(ctx context.Context, kind models.Kind, exp models.TermExpansion, req *models.SearchRequest) (models.KindResults, error) {
	start := time.Now()
	compute := func(ctx context.Context) (models.KindResults, int, error) {
		res, err := e.rankKind(ctx, kind, exp, req)
		if err != nil || res.Partial {
			// A zero count keeps partial pages out of the cache.
			return res, 0, err
		}
		return res, max(res.Total, len(res.Results)), nil
	}

	var res models.KindResults
	var err error
	if e.cache != nil {
		key := cache.SearchKey(string(kind), exp.Original, req.Filters, req.Skip(), req.Limit)
		res, _, err = cache.GetOrCompute(ctx, e.cache, key, e.config.CacheTTL(), compute)
	} else {
		res, _, err = compute(ctx)
	}

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case res.Partial:
		status = "partial"
	}
	metrics.SearchDuration.WithLabelValues(string(kind), status).Observe(time.Since(start).Seconds())
	return res, err
}

// rankKind scores the lexical candidates of kind, takes the requested page
// and blends semantic-only matches into the first page. Candidates come in
// store order, best matching clause first, so a candidate pool smaller than
// the match count only drops the weakest matches. Total is capped at the pool
// so every page it implies can be served.
func (e *Engine) rankKind(ctx context.Context, kind models.Kind, exp models.TermExpansion, req *models.SearchRequest) (models.KindResults, error) {
	c, err := criteria.Build(kind, exp, req.Filters)
	if err != nil {
		return models.KindResults{}, err
	}
	pool := e.config.CandidatePool
	docs, err := e.store.Find(ctx, c, storage.Page{Limit: pool})
	if err != nil {
		return models.KindResults{}, fmt.Errorf("%w: find %s: %v", models.ErrUpstreamUnavailable, kind, err)
	}
	total, err := e.store.Count(ctx, c)
	if err != nil {
		return models.KindResults{}, fmt.Errorf("%w: count %s: %v", models.ErrUpstreamUnavailable, kind, err)
	}
	truncated := pool > 0 && total > pool
	if truncated {
		total = pool
	}

	now := e.now()
	ranked := e.ranker.Rank(kind, exp, docs, now)
	page := paginate(ranked, req.Skip(), req.Limit)

	if exp.Original == "" || req.Skip() > 0 || e.config.Blend() == 0 {
		return models.KindResults{Results: page, Total: total, Truncated: truncated}, nil
	}

	semantic, err := e.semantic(ctx, kind, exp, c, ranked, now)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return models.KindResults{}, err
		}
		e.logger.Warn("semantic candidates unavailable, using lexical results only",
			zap.String("kind", string(kind)), zap.Error(err))
		return models.KindResults{Results: page, Total: total, Truncated: truncated, Partial: true}, nil
	}
	threshold := kind.Profile().SemanticThreshold
	blended := backfill(Blend(page, semantic, req.Limit, e.config.Blend(), threshold), page, req.Limit)
	return models.KindResults{Results: blended, Total: total, Truncated: truncated}, nil
}

// semantic returns documents similar to the query that the lexical pass
// missed, scored and sorted by similarity.
func (e *Engine) semantic(ctx context.Context, kind models.Kind, exp models.TermExpansion, c *criteria.Criteria, ranked []*models.ScoredResult, now time.Time) ([]*models.ScoredResult, error) {
	pool, err := e.store.Find(ctx, c.Unfiltered(), storage.Page{Limit: e.config.CandidatePool})
	if err != nil {
		return nil, err
	}
	matched := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		matched[r.Document.ID] = true
	}
	candidates := pool[:0]
	for _, d := range pool {
		if !matched[d.ID] {
			candidates = append(candidates, d)
		}
	}

	matches := e.embedder.Rank(exp.Original, candidates, kind.Profile().SemanticThreshold)
	out := make([]*models.ScoredResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, e.ranker.ScoreSemantic(kind, exp, m.Document, m.Score, now))
	}
	return out, nil
}

// HarvestTerms feeds names and tags of stored documents into the lexical
// dictionary so fuzzy expansion and suggestions know the catalogue.
func (e *Engine) HarvestTerms(ctx context.Context, limit int) error {
	for _, kind := range models.AllKinds {
		names, tags, err := e.store.Terms(ctx, kind, limit)
		if err != nil {
			return fmt.Errorf("harvest %s terms: %w", kind, err)
		}
		e.expander.AddTerms(names, tags)
		e.logger.Debug("harvested terms",
			zap.String("kind", string(kind)),
			zap.Int("names", len(names)),
			zap.Int("tags", len(tags)))
	}
	return nil
}

// Forget drops cached state derived from a document, after it changed.
func (e *Engine) Forget(id string) {
	e.embedder.Forget(id)
}

func paginate(results []*models.ScoredResult, skip, limit int) []*models.ScoredResult {
	if skip >= len(results) {
		return []*models.ScoredResult{}
	}
	end := min(skip+limit, len(results))
	return results[skip:end]
}
