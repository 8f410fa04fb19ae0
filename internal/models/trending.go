package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeRange selects the engagement window for trending.
type TimeRange string

const (
	RangeDay   TimeRange = "day"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeAll   TimeRange = "all"
)

// ParseTimeRange resolves a range name; "" means week.
func ParseTimeRange(s string) (TimeRange, error) {
	switch r := TimeRange(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeWeek, nil
	case RangeDay, RangeWeek, RangeMonth, RangeAll:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown time range %q", ErrInvalidInput, s)
}

// Days returns the window length in days, or 0 for RangeAll.
func (r TimeRange) Days() int {
	switch r {
	case RangeDay:
		return 1
	case RangeWeek:
		return 7
	case RangeMonth:
		return 30
	}
	return 0
}

// Since returns the start of the window ending at now; zero time for RangeAll.
func (r TimeRange) Since(now time.Time) time.Time {
	if d := r.Days(); d > 0 {
		return now.Add(-time.Duration(d) * 24 * time.Hour)
	}
	return time.Time{}
}

// EngagementCounts aggregates event facts for one entity inside a window.
type EngagementCounts struct {
	Upvotes     int `json:"upvotes"`
	Comments    int `json:"comments"`
	Views       int `json:"views"`
	Bookmarks   int `json:"bookmarks"`
	UniqueUsers int `json:"unique_users"`
}

// EventType names a raw engagement fact.
type EventType string

const (
	EventUpvote   EventType = "upvote"
	EventComment  EventType = "comment"
	EventView     EventType = "view"
	EventBookmark EventType = "bookmark"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventUpvote, EventComment, EventView, EventBookmark:
		return true
	}
	return false
}

// EngagementEvent is a single engagement fact recorded by collaborators.
type EngagementEvent struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	EntityID  string    `json:"entity_id"`
	UserID    string    `json:"user_id"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// TrendingScoreRecord is the persisted outcome of one trending computation.
type TrendingScoreRecord struct {
	Kind       Kind             `json:"kind"`
	EntityID   string           `json:"entity_id"`
	Metrics    EngagementCounts `json:"metrics"`
	AgeHours   float64          `json:"age_hours"`
	Score      float64          `json:"score"`
	ComputedAt time.Time        `json:"computed_at"`
}

// TrendingItem is one entry of a ranked trending list.
type TrendingItem struct {
	Document *Document        `json:"document"`
	Rank     int              `json:"rank"`
	Score    float64          `json:"score"`
	Metrics  EngagementCounts `json:"metrics"`
	AgeHours float64          `json:"age_hours"`
}

// Factor is one engagement signal's share of an item's activity.
type Factor struct {
	Name    string  `json:"name"`
	Points  float64 `json:"points"`
	Percent float64 `json:"percent"`
}

// Multipliers are the formula terms applied on top of activity.
type Multipliers struct {
	Velocity       float64 `json:"velocity"`
	Diversity      float64 `json:"diversity"`
	Recency        float64 `json:"recency"`
	TimeDecay      float64 `json:"time_decay"`
	BasePopularity float64 `json:"base_popularity"`
	ColdStartBoost float64 `json:"cold_start_boost"`
}

// TrendingInsights explains where an item stands in its trending list and why.
// Rank is 0 when the item is not eligible for the list.
type TrendingInsights struct {
	Kind                Kind             `json:"kind"`
	EntityID            string           `json:"entity_id"`
	TimeRange           TimeRange        `json:"time_range"`
	Rank                int              `json:"rank"`
	Total               int              `json:"total"`
	Percentile          float64          `json:"percentile"`
	Score               float64          `json:"score"`
	Metrics             EngagementCounts `json:"metrics"`
	AgeHours            float64          `json:"age_hours"`
	ContributingFactors []Factor         `json:"contributing_factors"`
	Multipliers         Multipliers      `json:"multipliers"`
	Insights            []string         `json:"insights"`
}
