package trending

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/rankd/internal/metrics"
	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/storage"
	"github.com/hyperjump/rankd/pkg/utils"
)

// DefaultRecomputeInterval is the default interval between recompute cycles.
const DefaultRecomputeInterval = 15 * time.Minute

// DefaultRecomputeTimeout is the default timeout for a single recompute cycle.
const DefaultRecomputeTimeout = 2 * time.Minute

// RecomputeJobConfig configures the trending recompute job.
type RecomputeJobConfig struct {
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Timeout bounds each recompute cycle.
	Timeout time.Duration
	// Range is the engagement window scores are computed over.
	Range models.TimeRange
	// Kinds to recompute; empty means every kind.
	Kinds  []models.Kind
	Logger *zap.Logger
}

// RecomputeResult summarizes one recompute cycle.
type RecomputeResult struct {
	RunID    string              `json:"run_id"`
	Status   string              `json:"status"`
	Scored   map[models.Kind]int `json:"scored"`
	Failed   int                 `json:"failed"`
	Duration time.Duration       `json:"duration_ns"`
}

// RecomputeJob periodically recomputes and persists trending scores.
type RecomputeJob struct {
	config  RecomputeJobConfig
	service *Service
	writer  storage.ScoreWriter

	cycle sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecomputeJob creates a recompute job writing scores through writer.
func NewRecomputeJob(config RecomputeJobConfig, service *Service, writer storage.ScoreWriter) *RecomputeJob {
	if config.Interval <= 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRecomputeTimeout
	}
	if config.Range == "" {
		config.Range = models.RangeWeek
	}
	if len(config.Kinds) == 0 {
		config.Kinds = models.AllKinds
	}
	config.Logger = utils.LoggerOrNop(config.Logger)
	return &RecomputeJob{config: config, service: service, writer: writer}
}

// Start begins the periodic job in a background goroutine. Calling Start on a
// running job is a no-op.
func (j *RecomputeJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the job to stop and waits for the current cycle to finish.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh, doneCh := j.stopCh, j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning reports whether the periodic loop is active.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *RecomputeJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("trending recompute job stopping: context cancelled")
			return
		case <-j.stopCh:
			j.config.Logger.Info("trending recompute job stopping")
			return
		case <-ticker.C:
			if _, err := j.RecomputeNow(ctx); err != nil {
				j.config.Logger.Error("trending recompute failed", zap.Error(err))
			}
		}
	}
}

// RecomputeNow runs one cycle immediately. Cycles never overlap: a call made
// while another cycle runs waits for it. Items whose score cannot be persisted
// are logged and skipped. The error is non-nil only when the cycle was cut
// short by cancellation or its timeout.
func (j *RecomputeJob) RecomputeNow(parent context.Context) (*RecomputeResult, error) {
	j.cycle.Lock()
	defer j.cycle.Unlock()

	ctx, cancel := context.WithTimeout(parent, j.config.Timeout)
	defer cancel()

	start := time.Now()
	res := &RecomputeResult{
		RunID:  uuid.NewString(),
		Status: "success",
		Scored: make(map[models.Kind]int, len(j.config.Kinds)),
	}
	log := j.config.Logger.With(zap.String("run_id", res.RunID))
	log.Info("recomputing trending scores",
		zap.String("range", string(j.config.Range)),
		zap.Int("kinds", len(j.config.Kinds)))

	var cycleErr error
	for _, kind := range j.config.Kinds {
		n, failed, err := j.recomputeKind(ctx, log, kind)
		res.Scored[kind] = n
		res.Failed += failed
		metrics.TrendingScored.WithLabelValues(string(kind)).Set(float64(n))
		if err != nil {
			cycleErr = err
			break
		}
		if err := j.service.Forget(ctx, kind); err != nil {
			log.Warn("trending cache invalidation failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	res.Duration = time.Since(start)
	switch {
	case cycleErr != nil:
		res.Status = "timeout"
	case res.Failed > 0:
		res.Status = "partial"
	}
	metrics.TrendingRecompute.WithLabelValues(res.Status).Inc()
	metrics.TrendingRecomputeDuration.Observe(res.Duration.Seconds())
	if cycleErr == nil {
		metrics.TrendingLastRecompute.SetToCurrentTime()
	}
	log.Info("trending recompute completed",
		zap.String("status", res.Status),
		zap.Any("scored", res.Scored),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration))
	return res, cycleErr
}

// recomputeKind scores and persists every eligible item of kind. It returns
// the number persisted, the number skipped and a non-nil error only on
// cancellation.
func (j *RecomputeJob) recomputeKind(ctx context.Context, log *zap.Logger, kind models.Kind) (int, int, error) {
	ranked, err := j.service.Rank(ctx, kind, j.config.Range)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, 0, ctxErr
		}
		log.Error("trending rank failed", zap.String("kind", string(kind)), zap.Error(err))
		metrics.TrendingRecomputeErrors.WithLabelValues(string(kind)).Inc()
		return 0, 1, nil
	}

	now := j.service.now()
	var scored, failed int
	for i, r := range ranked {
		if err := ctx.Err(); err != nil {
			log.Error("trending recompute timeout exceeded",
				zap.String("kind", string(kind)),
				zap.Int("processed", i),
				zap.Int("total", len(ranked)),
				zap.Duration("timeout", j.config.Timeout))
			return scored, failed, err
		}
		rec := &models.TrendingScoreRecord{
			Kind:       kind,
			EntityID:   r.Document.ID,
			Metrics:    r.Metrics,
			AgeHours:   r.AgeHours,
			Score:      r.Breakdown.Score,
			ComputedAt: now,
		}
		if err := j.writer.SaveTrendingScore(ctx, rec); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return scored, failed, err
			}
			log.Warn("skipping trending score",
				zap.String("kind", string(kind)),
				zap.String("id", r.Document.ID),
				zap.Error(err))
			metrics.TrendingRecomputeErrors.WithLabelValues(string(kind)).Inc()
			failed++
			continue
		}
		scored++
	}
	return scored, failed, nil
}
