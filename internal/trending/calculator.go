// Package trending computes time-decayed popularity scores, ranks items by
// them and explains individual positions.
package trending

import (
	"math"
	"sort"

	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/pkg/utils"
)

// Formula constants.
const (
	UpvoteWeight   = 3.0
	CommentWeight  = 2.0
	ViewWeight     = 0.5
	BookmarkWeight = 2.5

	HalfLifeHours     = 72.0
	DecayExponent     = 1.5
	RecentHours       = 48.0
	RecentBoost       = 1.5
	MinAgeHours       = 2.0
	ColdStartSignal   = 3
	VelocityFactor    = 5.0
	MaxVelocityBonus  = 3.0
	DiversityUsers    = 5.0
	MaxDiversity      = 1.5
	PopularityDivisor = 10.0
)

// Input is everything the formula reads for one item.
type Input struct {
	Metrics    models.EngagementCounts
	AgeHours   float64
	WindowDays float64
}

// Breakdown is the score with every intermediate term.
type Breakdown struct {
	Activity       float64
	Velocity       float64
	Diversity      float64
	Recency        float64
	TimeDecay      float64
	BasePopularity float64
	ColdStartBoost float64
	Score          float64
}

// Multipliers returns the terms applied on top of activity.
func (b Breakdown) Multipliers() models.Multipliers {
	return models.Multipliers{
		Velocity:       b.Velocity,
		Diversity:      b.Diversity,
		Recency:        b.Recency,
		TimeDecay:      b.TimeDecay,
		BasePopularity: 1 + b.BasePopularity,
		ColdStartBoost: b.ColdStartBoost,
	}
}

// Activity is the weighted sum of engagement counts.
func Activity(m models.EngagementCounts) float64 {
	return float64(m.Upvotes)*UpvoteWeight +
		float64(m.Comments)*CommentWeight +
		float64(m.Views)*ViewWeight +
		float64(m.Bookmarks)*BookmarkWeight
}

// TimeDecay is 1 / (ageHours + HalfLifeHours)^1.5, strictly decreasing in age.
func TimeDecay(ageHours float64) float64 {
	return 1 / math.Pow(math.Max(ageHours, 0)+HalfLifeHours, DecayExponent)
}

// Score evaluates the trending formula. It is a pure function of in.
func Score(in Input) Breakdown {
	m := in.Metrics
	age := math.Max(in.AgeHours, 0)
	window := in.WindowDays
	if window <= 0 {
		window = 1
	}

	b := Breakdown{
		Activity:       Activity(m),
		Velocity:       1 + math.Min(float64(m.Upvotes)/window*VelocityFactor, MaxVelocityBonus),
		Diversity:      math.Min(float64(m.UniqueUsers)/DiversityUsers, MaxDiversity),
		Recency:        1,
		TimeDecay:      TimeDecay(age),
		BasePopularity: float64(m.Bookmarks+1) / PopularityDivisor,
	}
	if age < RecentHours {
		b.Recency = RecentBoost
	}
	b.Score = b.Activity * b.Velocity * b.Diversity * b.Recency * b.TimeDecay * (1 + b.BasePopularity)
	if m.Upvotes+m.Comments < ColdStartSignal {
		b.ColdStartBoost = 1 / (age + 1)
		b.Score += b.ColdStartBoost
	}
	return b
}

// Eligible reports whether an item is old enough to appear on trending surfaces.
func Eligible(ageHours float64) bool {
	return ageHours >= MinAgeHours
}

// WindowDays is the velocity window for r; the all-time range uses the
// item's own age, at least one day.
func WindowDays(r models.TimeRange, ageHours float64) float64 {
	if d := r.Days(); d > 0 {
		return float64(d)
	}
	return math.Max(1, ageHours/24)
}

// Factors splits activity into per-signal contributions, largest first.
// Signals with no engagement are left out.
func Factors(m models.EngagementCounts) []models.Factor {
	activity := Activity(m)
	out := make([]models.Factor, 0, 4)
	for _, f := range []struct {
		name   string
		points float64
	}{
		{"upvotes", float64(m.Upvotes) * UpvoteWeight},
		{"comments", float64(m.Comments) * CommentWeight},
		{"views", float64(m.Views) * ViewWeight},
		{"bookmarks", float64(m.Bookmarks) * BookmarkWeight},
	} {
		if f.points <= 0 {
			continue
		}
		out = append(out, models.Factor{Name: f.name, Points: f.points, Percent: f.points / activity * 100})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	return out
}

// Percentile is the share of the list at or below rank, in percent.
func Percentile(rank, total int) float64 {
	if rank < 1 || total < 1 || rank > total {
		return 0
	}
	return utils.Round(float64(total-rank+1)/float64(total)*100, 2)
}
