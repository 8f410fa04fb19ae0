package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type failingKV struct {
	getErr, setErr, delErr error
	sets                   int
}

func (f *failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.getErr }

func (f *failingKV) Set(context.Context, string, []byte, time.Duration) error {
	f.sets++
	return f.setErr
}

func (f *failingKV) DeleteMatching(context.Context, string) (int, error) { return 0, f.delErr }

func TestAdaptiveTTL(t *testing.T) {
	tests := []struct {
		name  string
		base  time.Duration
		count int
		want  time.Duration
	}{
		{"large doubles", 10 * time.Minute, 101, 20 * time.Minute},
		{"large capped", 20 * time.Minute, 500, MaxTTL},
		{"small halves", 10 * time.Minute, 4, 5 * time.Minute},
		{"small floored", time.Minute, 1, MinTTL},
		{"medium unchanged", 10 * time.Minute, 50, 10 * time.Minute},
		{"boundary 100 unchanged", 10 * time.Minute, 100, 10 * time.Minute},
		{"boundary 5 unchanged", 10 * time.Minute, 5, 10 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdaptiveTTL(tt.base, tt.count); got != tt.want {
				t.Errorf("AdaptiveTTL(%v, %d) = %v, want %v", tt.base, tt.count, got, tt.want)
			}
		})
	}
}

func TestGetOrCompute_HitSkipsCompute(t *testing.T) {
	ctx := context.Background()
	o := NewOrchestrator(NewMemoryKV())
	calls := 0
	compute := func(context.Context) ([]string, int, error) {
		calls++
		return []string{"a", "b"}, 2, nil
	}

	v, hit, err := GetOrCompute(ctx, o, "k", time.Minute, compute)
	if err != nil || hit || len(v) != 2 {
		t.Fatalf("first call = %v, %v, %v", v, hit, err)
	}
	v, hit, err = GetOrCompute(ctx, o, "k", time.Minute, compute)
	if err != nil || !hit || len(v) != 2 || v[1] != "b" {
		t.Fatalf("second call = %v, %v, %v", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
}

func TestGetOrCompute_EmptyNotCached(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	o := NewOrchestrator(kv)
	_, _, err := GetOrCompute(ctx, o, "k", time.Minute, func(context.Context) ([]string, int, error) {
		return nil, 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if kv.Len() != 0 {
		t.Error("empty results must not be cached")
	}
}

func TestGetOrCompute_ErrorAndCancelNotCached(t *testing.T) {
	kv := NewMemoryKV()
	o := NewOrchestrator(kv)
	boom := errors.New("boom")

	_, _, err := GetOrCompute(context.Background(), o, "k", time.Minute, func(context.Context) (int, int, error) {
		return 0, 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, _, err = GetOrCompute(ctx, o, "k", time.Minute, func(context.Context) (int, int, error) {
		cancel()
		return 7, 1, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if kv.Len() != 0 {
		t.Error("failed or cancelled computations must not be cached")
	}
}

func TestGetOrCompute_BackendFailuresDegrade(t *testing.T) {
	kv := &failingKV{getErr: errors.New("down"), setErr: errors.New("down")}
	o := NewOrchestrator(kv)
	v, hit, err := GetOrCompute(context.Background(), o, "k", time.Minute, func(context.Context) (int, int, error) {
		return 42, 1, nil
	})
	if err != nil || hit || v != 42 {
		t.Fatalf("GetOrCompute = %v, %v, %v", v, hit, err)
	}
	if kv.sets != 1 {
		t.Errorf("expected one set attempt, got %d", kv.sets)
	}
}

func TestInvalidate_Cascade(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	for _, k := range []string{
		"products:detail:my-slug",
		"products:detail:other",
		"products:list:page1",
		"products:list:page2",
		"products:trending:week",
		"recommendations:u1",
		"jobs:list:page1",
		SearchKey("products", "react", nil, 0, 10),
		SearchKey("jobs", "react", nil, 0, 10),
	} {
		_ = kv.Set(ctx, k, []byte("x"), 0)
	}
	o := NewOrchestrator(kv, WithDebounce(0))

	res, err := o.Invalidate(ctx, "products:detail:my-slug")
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"products:detail:my-slug", "products:list:page1", "products:list:page2", "recommendations:u1", "products:trending:week", SearchKey("products", "react", nil, 0, 10)} {
		if _, err := kv.Get(ctx, k); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s should be invalidated", k)
		}
	}
	for _, k := range []string{"products:detail:other", "jobs:list:page1", SearchKey("jobs", "react", nil, 0, 10)} {
		if _, err := kv.Get(ctx, k); err != nil {
			t.Errorf("%s should survive", k)
		}
	}
	if res.Deleted != 6 {
		t.Errorf("Deleted = %d, want 6", res.Deleted)
	}
	if res.Patterns[0] != "products:detail:my-slug" || len(res.Patterns) != 5 {
		t.Errorf("Patterns = %v", res.Patterns)
	}
}

func TestInvalidate_ChainedAndUserScoped(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	for _, k := range []string{"products:detail:p1", "products:list:1", "bookmarks:u1:page1", "bookmarks:u2:page1", "recommendations:u1:feed"} {
		_ = kv.Set(ctx, k, []byte("x"), 0)
	}
	o := NewOrchestrator(kv, WithDebounce(0))

	res, err := o.Invalidate(ctx, "comments:products:p1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Get(ctx, "products:list:1"); !errors.Is(err, ErrNotFound) {
		t.Error("comment invalidation should cascade through product detail to lists")
	}
	if len(res.Patterns) < 3 {
		t.Errorf("expected a multi-level cascade, got %v", res.Patterns)
	}

	if _, err := o.Invalidate(ctx, "users:detail:u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Get(ctx, "bookmarks:u1:page1"); !errors.Is(err, ErrNotFound) {
		t.Error("u1 bookmarks should be invalidated")
	}
	if _, err := kv.Get(ctx, "bookmarks:u2:page1"); err != nil {
		t.Error("u2 bookmarks should survive")
	}
	if _, err := kv.Get(ctx, "recommendations:u1:feed"); !errors.Is(err, ErrNotFound) {
		t.Error("u1 recommendations should be invalidated")
	}
}

func TestInvalidate_CycleVisitsOnce(t *testing.T) {
	rules := []Rule{
		{Pattern: "a:*", Related: []string{"b:*"}},
		{Pattern: "b:*", Related: []string{"a:*"}},
	}
	o := NewOrchestrator(NewMemoryKV(), WithRules(rules), WithDebounce(0))
	res, err := o.Invalidate(context.Background(), "a:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Patterns) != 2 {
		t.Errorf("Patterns = %v, want each pattern once", res.Patterns)
	}
}

func TestInvalidate_Debounce(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	o := NewOrchestrator(kv, WithDebounce(time.Minute))

	if _, err := o.Invalidate(ctx, "jobs:list:*"); err != nil {
		t.Fatal(err)
	}
	_ = kv.Set(ctx, "jobs:list:1", []byte("x"), 0)
	res, err := o.Invalidate(ctx, "jobs:list:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Skipped) != 1 || res.Deleted != 0 {
		t.Errorf("second invalidation should be debounced: %+v", res)
	}
}

func TestInvalidate_ErrorsJoinedCascadeContinues(t *testing.T) {
	kv := &failingKV{delErr: errors.New("down")}
	o := NewOrchestrator(kv, WithDebounce(0))
	res, err := o.Invalidate(context.Background(), "products:detail:x")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(res.Patterns) != 5 {
		t.Errorf("cascade should continue past failures, got %v", res.Patterns)
	}
}
