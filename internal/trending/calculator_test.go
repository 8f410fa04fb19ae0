package trending

import (
	"math"
	"testing"

	"github.com/hyperjump/rankd/internal/models"
)

const tolerance = 1e-12

func scenario(age float64) Input {
	return Input{
		Metrics:    models.EngagementCounts{Upvotes: 10, Comments: 2, Views: 50, UniqueUsers: 5},
		AgeHours:   age,
		WindowDays: 7,
	}
}

func TestScore_Scenario(t *testing.T) {
	b := Score(scenario(10))
	if b.Activity != 59 {
		t.Errorf("Activity = %v, want 59", b.Activity)
	}
	if b.Velocity != 4 {
		t.Errorf("Velocity = %v, want 4 (capped)", b.Velocity)
	}
	if b.Diversity != 1 {
		t.Errorf("Diversity = %v, want 1", b.Diversity)
	}
	if b.Recency != 1.5 {
		t.Errorf("Recency = %v, want 1.5", b.Recency)
	}
	if b.ColdStartBoost != 0 {
		t.Errorf("no cold-start boost expected, got %v", b.ColdStartBoost)
	}
	want := 59 * 4 * 1 * 1.5 * (1 / math.Pow(82, 1.5)) * 1.1
	if math.Abs(b.Score-want) > tolerance {
		t.Errorf("Score = %v, want %v", b.Score, want)
	}
}

func TestScore_DecreasesWithAge(t *testing.T) {
	prev := math.Inf(1)
	prevDecay := math.Inf(1)
	for age := 0.0; age <= 24*60; age += 5 {
		b := Score(scenario(age))
		if b.Score >= prev {
			t.Fatalf("score did not decrease at age %v: %v >= %v", age, b.Score, prev)
		}
		if b.TimeDecay >= prevDecay {
			t.Fatalf("time decay did not decrease at age %v", age)
		}
		prev, prevDecay = b.Score, b.TimeDecay
	}
}

func TestScore_Idempotent(t *testing.T) {
	in := scenario(33.3)
	if a, b := Score(in), Score(in); a != b {
		t.Errorf("same input gave %+v and %+v", a, b)
	}
}

func TestScore_ColdStart(t *testing.T) {
	tests := []struct {
		name    string
		metrics models.EngagementCounts
		boosted bool
	}{
		{"no engagement", models.EngagementCounts{}, true},
		{"two signals", models.EngagementCounts{Upvotes: 1, Comments: 1, Views: 40}, true},
		{"three signals", models.EngagementCounts{Upvotes: 2, Comments: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Score(Input{Metrics: tt.metrics, AgeHours: 9, WindowDays: 1})
			if got := b.ColdStartBoost > 0; got != tt.boosted {
				t.Fatalf("boosted = %v, want %v", got, tt.boosted)
			}
			if tt.boosted && math.Abs(b.ColdStartBoost-0.1) > tolerance {
				t.Errorf("boost = %v, want 1/(9+1)", b.ColdStartBoost)
			}
		})
	}
	if b := Score(Input{AgeHours: 9}); b.Score != b.ColdStartBoost {
		t.Errorf("zero engagement should score only the boost, got %+v", b)
	}
}

func TestScore_DiversityCap(t *testing.T) {
	b := Score(Input{Metrics: models.EngagementCounts{Upvotes: 5, UniqueUsers: 50}, AgeHours: 100, WindowDays: 30})
	if b.Diversity != MaxDiversity {
		t.Errorf("Diversity = %v, want %v", b.Diversity, MaxDiversity)
	}
	if b.Recency != 1 {
		t.Errorf("old items get no recency boost, got %v", b.Recency)
	}
}

func TestEligible(t *testing.T) {
	if Eligible(1.99) {
		t.Error("items under two hours old are not eligible")
	}
	if !Eligible(2) {
		t.Error("two-hour-old items are eligible")
	}
}

func TestWindowDays(t *testing.T) {
	tests := []struct {
		r    models.TimeRange
		age  float64
		want float64
	}{
		{models.RangeDay, 500, 1},
		{models.RangeWeek, 500, 7},
		{models.RangeMonth, 1, 30},
		{models.RangeAll, 12, 1},
		{models.RangeAll, 96, 4},
	}
	for _, tt := range tests {
		if got := WindowDays(tt.r, tt.age); got != tt.want {
			t.Errorf("WindowDays(%s, %v) = %v, want %v", tt.r, tt.age, got, tt.want)
		}
	}
}

func TestFactors(t *testing.T) {
	got := Factors(models.EngagementCounts{Upvotes: 10, Comments: 2, Views: 50})
	if len(got) != 3 {
		t.Fatalf("zero signals should be dropped, got %+v", got)
	}
	wantOrder := []string{"upvotes", "views", "comments"}
	var total float64
	for i, f := range got {
		if f.Name != wantOrder[i] {
			t.Errorf("factor %d = %s, want %s", i, f.Name, wantOrder[i])
		}
		total += f.Percent
	}
	if math.Abs(total-100) > 1e-9 {
		t.Errorf("percentages sum to %v", total)
	}
	if math.Abs(got[0].Percent-30.0/59*100) > 1e-9 {
		t.Errorf("upvote share = %v", got[0].Percent)
	}
	if len(Factors(models.EngagementCounts{})) != 0 {
		t.Error("no engagement should give no factors")
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		rank, total int
		want        float64
	}{
		{1, 4, 100},
		{4, 4, 25},
		{3, 4, 50},
		{2, 3, 66.67},
		{0, 4, 0},
		{5, 4, 0},
	}
	for _, tt := range tests {
		if got := Percentile(tt.rank, tt.total); got != tt.want {
			t.Errorf("Percentile(%d, %d) = %v, want %v", tt.rank, tt.total, got, tt.want)
		}
	}
}

func BenchmarkScore(b *testing.B) {
	in := scenario(10)
	for i := 0; i < b.N; i++ {
		_ = Score(in)
	}
}
