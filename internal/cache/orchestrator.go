package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/hyperjump/rankd/internal/metrics"
	"github.com/hyperjump/rankd/pkg/utils"
)

const (
	// MaxTTL caps the TTL of large result sets.
	MaxTTL = 30 * time.Minute
	// MinTTL floors the TTL of small result sets.
	MinTTL = time.Minute

	largeResultSet = 100
	smallResultSet = 5

	debounceEntries = 4096
)

// Orchestrator caches computed results in a KV and invalidates related keys.
type Orchestrator struct {
	kv     KV
	rules  []Rule
	recent *expirable.LRU[string, struct{}]
	logger *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRules replaces the invalidation rule table.
func WithRules(rules []Rule) Option {
	return func(o *Orchestrator) { o.rules = rules }
}

// WithDebounce skips re-invalidating a pattern within window. Zero disables it.
func WithDebounce(window time.Duration) Option {
	return func(o *Orchestrator) {
		if window <= 0 {
			o.recent = nil
			return
		}
		o.recent = expirable.NewLRU[string, struct{}](debounceEntries, nil, window)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator over kv with the default rules and
// a two second invalidation debounce.
func NewOrchestrator(kv KV, opts ...Option) *Orchestrator {
	o := &Orchestrator{kv: kv, rules: DefaultRules()}
	WithDebounce(2 * time.Second)(o)
	for _, opt := range opts {
		opt(o)
	}
	o.logger = utils.LoggerOrNop(o.logger)
	return o
}

// AdaptiveTTL scales base by result count: more than 100 items doubles it
// (at most MaxTTL), fewer than 5 halves it (at least MinTTL).
func AdaptiveTTL(base time.Duration, count int) time.Duration {
	switch {
	case count > largeResultSet:
		return min(2*base, MaxTTL)
	case count < smallResultSet:
		return max(base/2, MinTTL)
	}
	return base
}

// ComputeFunc produces a value and its item count.
type ComputeFunc[T any] func(ctx context.Context) (T, int, error)

// GetOrCompute returns the cached value for key, or computes and stores it.
// The second result reports a cache hit. Empty, failed or cancelled computations
// are not stored. Cache failures are logged and treated as misses.
func GetOrCompute[T any](ctx context.Context, o *Orchestrator, key string, baseTTL time.Duration, compute ComputeFunc[T]) (T, bool, error) {
	var zero T
	data, err := o.kv.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		uerr := json.Unmarshal(data, &v)
		if uerr == nil {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return v, true, nil
		}
		o.logger.Warn("cache entry undecodable, recomputing", zap.String("key", key), zap.Error(uerr))
	case errors.Is(err, ErrNotFound):
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	default:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		o.logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
	}

	v, count, err := compute(ctx)
	if err != nil {
		return zero, false, err
	}
	if ctx.Err() != nil || count == 0 {
		return v, false, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		o.logger.Warn("cache payload not encodable", zap.String("key", key), zap.Error(err))
		return v, false, nil
	}
	ttl := AdaptiveTTL(baseTTL, count)
	if err := o.kv.Set(ctx, key, payload, ttl); err != nil {
		o.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return v, false, nil
}

// InvalidationResult reports what an Invalidate call touched.
type InvalidationResult struct {
	// Patterns lists the patterns processed, in breadth-first order.
	Patterns []string `json:"patterns"`
	// Skipped lists patterns suppressed by the debounce window.
	Skipped []string `json:"skipped,omitempty"`
	// Deleted is the number of keys removed.
	Deleted int `json:"deleted"`
}

// Invalidate deletes keys matching pattern and, breadth-first, every related
// pattern from the rule table. Each pattern is processed at most once per call.
// Delete failures are logged and returned joined; the cascade continues.
func (o *Orchestrator) Invalidate(ctx context.Context, pattern string) (*InvalidationResult, error) {
	res := &InvalidationResult{}
	visited := map[string]bool{pattern: true}
	queue := []string{pattern}
	var errs []error

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p := queue[0]
		queue = queue[1:]

		if o.recent != nil {
			if _, ok := o.recent.Get(p); ok {
				res.Skipped = append(res.Skipped, p)
				continue
			}
		}
		res.Patterns = append(res.Patterns, p)
		n, err := o.kv.DeleteMatching(ctx, p)
		res.Deleted += n
		if err != nil {
			o.logger.Warn("cache invalidation failed", zap.String("pattern", p), zap.Error(err))
			errs = append(errs, err)
		} else if o.recent != nil {
			o.recent.Add(p, struct{}{})
		}

		for _, r := range o.rules {
			for _, rel := range r.related(p) {
				if !visited[rel] {
					visited[rel] = true
					queue = append(queue, rel)
				}
			}
		}
	}
	metrics.CacheInvalidated.Add(float64(res.Deleted))
	o.logger.Debug("cache invalidated",
		zap.String("pattern", pattern),
		zap.Strings("cascade", res.Patterns),
		zap.Int("deleted", res.Deleted))
	return res, errors.Join(errs...)
}
