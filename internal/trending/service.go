package trending

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/rankd/internal/cache"
	"github.com/hyperjump/rankd/internal/config"
	"github.com/hyperjump/rankd/internal/criteria"
	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/storage"
	"github.com/hyperjump/rankd/pkg/utils"
)

// Ranked is an eligible item with its score breakdown.
type Ranked struct {
	Document  *models.Document
	Metrics   models.EngagementCounts
	AgeHours  float64
	Breakdown Breakdown
}

// Service ranks documents of a kind by trending score.
type Service struct {
	docs   storage.DocumentStore
	events storage.EventStore
	cache  *cache.Orchestrator
	config *config.TrendingConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a trending service. A nil orchestrator disables caching.
func NewService(
	docs storage.DocumentStore,
	events storage.EventStore,
	orchestrator *cache.Orchestrator,
	cfg *config.TrendingConfig,
	logger *zap.Logger,
) *Service {
	if cfg == nil {
		cfg = &config.TrendingConfig{}
	}
	return &Service{
		docs:   docs,
		events: events,
		cache:  orchestrator,
		config: cfg,
		logger: utils.LoggerOrNop(logger),
		now:    time.Now,
	}
}

// ComputeTrending returns up to limit items of kind ranked by trending score
// over timeRange, leaving out excludeIDs. Ranks are positions in the full list.
func (s *Service) ComputeTrending(ctx context.Context, kind models.Kind, limit int, timeRange models.TimeRange, excludeIDs []string) ([]*models.TrendingItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", models.ErrInvalidInput, kind)
	}
	timeRange, err := models.ParseTimeRange(string(timeRange))
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = s.config.DefaultLimit
	}
	if limit < 1 || limit > models.MaxLimit {
		return nil, fmt.Errorf("%w: limit must be in [1, %d], got %d", models.ErrInvalidInput, models.MaxLimit, limit)
	}
	for _, id := range excludeIDs {
		if !models.ValidID(id) {
			return nil, fmt.Errorf("%w: malformed entity id %q", models.ErrInvalidInput, id)
		}
	}

	compute := func(ctx context.Context) ([]*models.TrendingItem, int, error) {
		items, err := s.compute(ctx, kind, limit, timeRange, excludeIDs)
		return items, len(items), err
	}
	if s.cache == nil {
		items, _, err := compute(ctx)
		return items, err
	}
	key := cache.TrendingKey(string(kind), string(timeRange), limit, excludeIDs)
	items, _, err := cache.GetOrCompute(ctx, s.cache, key, s.config.CacheTTL(), compute)
	return items, err
}

func (s *Service) compute(ctx context.Context, kind models.Kind, limit int, timeRange models.TimeRange, excludeIDs []string) ([]*models.TrendingItem, error) {
	ranked, err := s.Rank(ctx, kind, timeRange)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	items := make([]*models.TrendingItem, 0, limit)
	for i, r := range ranked {
		if len(items) == limit {
			break
		}
		if excluded[r.Document.ID] {
			continue
		}
		items = append(items, &models.TrendingItem{
			Document: r.Document,
			Rank:     i + 1,
			Score:    r.Breakdown.Score,
			Metrics:  r.Metrics,
			AgeHours: r.AgeHours,
		})
	}
	return items, nil
}

// Rank scores every visible item of kind created within timeRange and
// returns the eligible ones, best first with ties broken by id.
func (s *Service) Rank(ctx context.Context, kind models.Kind, timeRange models.TimeRange) ([]Ranked, error) {
	now := s.now()
	since := timeRange.Since(now)
	filters := map[string]string{}
	if !since.IsZero() {
		filters[criteria.FilterFrom] = since.Format(time.RFC3339)
	}
	c, err := criteria.Build(kind, models.TermExpansion{}, filters)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.Find(ctx, c, storage.Page{})
	if err != nil {
		return nil, fmt.Errorf("%w: find %s: %v", models.ErrUpstreamUnavailable, kind, err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	counts, err := s.events.Engagement(ctx, kind, ids, since)
	if err != nil {
		return nil, fmt.Errorf("%w: engagement %s: %v", models.ErrUpstreamUnavailable, kind, err)
	}

	out := make([]Ranked, 0, len(docs))
	for _, d := range docs {
		age := d.Age(now).Hours()
		if !Eligible(age) {
			continue
		}
		m := counts[d.ID]
		out = append(out, Ranked{
			Document:  d,
			Metrics:   m,
			AgeHours:  age,
			Breakdown: Score(Input{Metrics: m, AgeHours: age, WindowDays: WindowDays(timeRange, age)}),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Breakdown.Score != out[j].Breakdown.Score {
			return out[i].Breakdown.Score > out[j].Breakdown.Score
		}
		return out[i].Document.ID < out[j].Document.ID
	})
	s.logger.Debug("trending ranked",
		zap.String("kind", string(kind)),
		zap.String("range", string(timeRange)),
		zap.Int("candidates", len(docs)),
		zap.Int("eligible", len(out)))
	return out, nil
}

// Insights explains the trending position of one item. Items that are not on
// the list (too new, outside the range or not visible) get rank 0 and a score
// computed from their own engagement.
func (s *Service) Insights(ctx context.Context, kind models.Kind, id string, timeRange models.TimeRange) (*models.TrendingInsights, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", models.ErrInvalidInput, kind)
	}
	if !models.ValidID(id) {
		return nil, fmt.Errorf("%w: malformed entity id %q", models.ErrInvalidInput, id)
	}
	timeRange, err := models.ParseTimeRange(string(timeRange))
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	ranked, err := s.Rank(ctx, kind, timeRange)
	if err != nil {
		return nil, err
	}
	out := &models.TrendingInsights{
		Kind:      kind,
		EntityID:  id,
		TimeRange: timeRange,
		Total:     len(ranked),
	}

	var entry *Ranked
	for i := range ranked {
		if ranked[i].Document.ID == id {
			entry = &ranked[i]
			out.Rank = i + 1
			break
		}
	}
	if entry == nil {
		since := timeRange.Since(s.now())
		counts, err := s.events.Engagement(ctx, kind, []string{id}, since)
		if err != nil {
			return nil, fmt.Errorf("%w: engagement %s/%s: %v", models.ErrUpstreamUnavailable, kind, id, err)
		}
		age := doc.Age(s.now()).Hours()
		m := counts[id]
		entry = &Ranked{
			Document:  doc,
			Metrics:   m,
			AgeHours:  age,
			Breakdown: Score(Input{Metrics: m, AgeHours: age, WindowDays: WindowDays(timeRange, age)}),
		}
	}

	out.Percentile = Percentile(out.Rank, out.Total)
	out.Score = entry.Breakdown.Score
	out.Metrics = entry.Metrics
	out.AgeHours = entry.AgeHours
	out.ContributingFactors = Factors(entry.Metrics)
	out.Multipliers = entry.Breakdown.Multipliers()
	out.Insights = describe(out, entry.Breakdown)
	return out, nil
}

// describe turns the numbers of an insight into short readable statements.
func describe(in *models.TrendingInsights, b Breakdown) []string {
	msgs := []string{}
	switch {
	case in.Rank == 0 && !Eligible(in.AgeHours):
		msgs = append(msgs, fmt.Sprintf("Too new to trend: items appear after %.0f hours", MinAgeHours))
	case in.Rank == 0:
		msgs = append(msgs, fmt.Sprintf("Not on the %s trending list", in.TimeRange))
	case in.Rank <= 10:
		msgs = append(msgs, fmt.Sprintf("Top 10 trending %s (#%d of %d)", in.Kind, in.Rank, in.Total))
	case in.Percentile >= 90:
		msgs = append(msgs, fmt.Sprintf("In the top %.0f%% of trending %s", float64(in.Rank)/float64(in.Total)*100, in.Kind))
	}
	if len(in.ContributingFactors) > 0 {
		top := in.ContributingFactors[0]
		msgs = append(msgs, fmt.Sprintf("Most activity comes from %s (%.0f%%)", top.Name, top.Percent))
	}
	if b.Velocity >= 1+MaxVelocityBonus {
		msgs = append(msgs, "Upvotes are arriving quickly")
	}
	if b.Diversity >= 1 {
		msgs = append(msgs, "Engagement comes from a broad set of users")
	}
	if b.Recency > 1 {
		msgs = append(msgs, fmt.Sprintf("Boosted for being posted in the last %.0f hours", RecentHours))
	}
	if b.ColdStartBoost > 0 {
		msgs = append(msgs, "Cold-start boost applied for low early engagement")
	}
	return msgs
}

// Forget drops cached trending lists of kind.
func (s *Service) Forget(ctx context.Context, kind models.Kind) error {
	if s.cache == nil {
		return nil
	}
	_, err := s.cache.Invalidate(ctx, string(kind)+":trending:*")
	return err
}
