package trending

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/storage"
)

// flakyWriter fails saves for the ids in fail and forwards the rest.
type flakyWriter struct {
	storage.ScoreWriter
	fail map[string]error
}

func (w *flakyWriter) SaveTrendingScore(ctx context.Context, rec *models.TrendingScoreRecord) error {
	if err, ok := w.fail[rec.EntityID]; ok {
		return err
	}
	return w.ScoreWriter.SaveTrendingScore(ctx, rec)
}

func TestRecomputeJob_StartStop(t *testing.T) {
	store := seed(t)
	job := NewRecomputeJob(RecomputeJobConfig{Interval: 50 * time.Millisecond}, newService(t, store, nil), store)

	if job.IsRunning() {
		t.Error("job should not be running before Start")
	}
	ctx := context.Background()
	if err := job.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !job.IsRunning() {
		t.Error("job should be running after Start")
	}
	if err := job.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	job.Stop()
	if job.IsRunning() {
		t.Error("job should not be running after Stop")
	}
	job.Stop()
}

func TestRecomputeJob_RecomputeNow(t *testing.T) {
	store := seed(t)
	svc := newService(t, store, nil)
	job := NewRecomputeJob(RecomputeJobConfig{Kinds: []models.Kind{models.KindProducts}}, svc, store)
	ctx := context.Background()

	res, err := job.RecomputeNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "success" || res.Scored[models.KindProducts] != 2 || res.Failed != 0 || res.RunID == "" {
		t.Errorf("result = %+v", res)
	}

	rec, err := store.TrendingScore(ctx, models.KindProducts, "hot")
	if err != nil {
		t.Fatal(err)
	}
	want := Score(scenario(10)).Score
	if math.Abs(rec.Score-want) > tolerance || rec.AgeHours != 10 || !rec.ComputedAt.Equal(now) {
		t.Errorf("record = %+v", rec)
	}
	doc, _ := store.Get(ctx, models.KindProducts, "hot")
	if doc.TrendingScore != rec.Score {
		t.Errorf("document score = %v, want %v", doc.TrendingScore, rec.Score)
	}
	if _, err := store.TrendingScore(ctx, models.KindProducts, "fresh"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("ineligible items should not be scored: %v", err)
	}

	if _, err := job.RecomputeNow(ctx); err != nil {
		t.Fatal(err)
	}
	again, _ := store.TrendingScore(ctx, models.KindProducts, "hot")
	if again.Score != rec.Score {
		t.Errorf("recompute on unchanged data changed the score: %v -> %v", rec.Score, again.Score)
	}
}

func TestRecomputeJob_SkipsFailedItems(t *testing.T) {
	store := seed(t)
	writer := &flakyWriter{ScoreWriter: store, fail: map[string]error{"quiet": models.ErrNotFound}}
	job := NewRecomputeJob(RecomputeJobConfig{Kinds: []models.Kind{models.KindProducts}}, newService(t, store, nil), writer)

	res, err := job.RecomputeNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "partial" || res.Failed != 1 || res.Scored[models.KindProducts] != 1 {
		t.Errorf("result = %+v", res)
	}
	if _, err := store.TrendingScore(context.Background(), models.KindProducts, "hot"); err != nil {
		t.Errorf("healthy items should still be saved: %v", err)
	}
}

func TestRecomputeJob_Cancelled(t *testing.T) {
	store := seed(t)
	job := NewRecomputeJob(RecomputeJobConfig{}, newService(t, store, nil), store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := job.RecomputeNow(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Status != "timeout" {
		t.Errorf("status = %s", res.Status)
	}
	if _, err := store.TrendingScore(context.Background(), models.KindProducts, "hot"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("cancelled cycle should not persist scores: %v", err)
	}
}
