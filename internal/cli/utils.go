// Package cli provides output helpers for the rankd command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat resolves a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("%w: output must be text or json, got %q", models.ErrInvalidInput, s)
}

const snippetLen = 160

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	writeSearchResultsText(w, response)
	return nil
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nResults for %q in %dms\n", response.Query, response.QueryTime)
	if len(response.Suggestions) > 0 {
		fmt.Fprintf(w, "Did you mean: %s\n", strings.Join(response.Suggestions, ", "))
	}
	for _, kind := range models.AllKinds {
		res, ok := response.Results[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n--- %s (%d matched) ---\n", kind, res.Total)
		if len(res.Results) == 0 {
			fmt.Fprintln(w, "  no results")
		}
		for i, result := range res.Results {
			writeOneResult(w, i+1, result, response.Query)
		}
	}
	if len(response.Degraded) > 0 {
		kinds := make([]string, len(response.Degraded))
		for i, k := range response.Degraded {
			kinds[i] = string(k)
		}
		fmt.Fprintf(w, "\nwarning: results unavailable for %s\n", strings.Join(kinds, ", "))
	}
	fmt.Fprintln(w)
}

func writeOneResult(w io.Writer, rank int, result *models.ScoredResult, query string) {
	doc := result.Document
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s [%s] | Score: %.2f (Relevance: %.1f, Engagement: %.1f, Quality: %.1f, Recency: %.1f)\n",
		rank, doc.Name, doc.ID, result.FinalScore,
		result.RelevanceScore, result.EngagementScore, result.QualityScore, result.RecencyScore)
	if result.Explanation.Summary != "" {
		fmt.Fprintf(w, "   %s\n", result.Explanation.Summary)
	}
	if result.Explanation.Semantic {
		fmt.Fprintf(w, "   semantic similarity %.2f\n", result.SemanticScore)
	}
	if doc.Description != "" {
		fmt.Fprintf(w, "   %s\n", search.Snippet(doc.Description, query, snippetLen))
	}
}

// WriteTrending writes a ranked trending list.
func WriteTrending(w io.Writer, kind models.Kind, timeRange models.TimeRange, items []*models.TrendingItem, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, items)
	}
	fmt.Fprintf(w, "\nTrending %s (%s)\n\n", kind, timeRange)
	if len(items) == 0 {
		fmt.Fprintln(w, "  nothing trending")
		return nil
	}
	for _, it := range items {
		m := it.Metrics
		fmt.Fprintf(w, "%3d. %-40s %8.4f  upvotes %d, comments %d, views %d, bookmarks %d, %.0fh old\n",
			it.Rank, TruncateName(it.Document.Name, 40), it.Score,
			m.Upvotes, m.Comments, m.Views, m.Bookmarks, it.AgeHours)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteInsights writes the trending explanation of one item.
func WriteInsights(w io.Writer, in *models.TrendingInsights, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, in)
	}
	fmt.Fprintf(w, "\n%s/%s (%s)\n", in.Kind, in.EntityID, in.TimeRange)
	if in.Rank > 0 {
		fmt.Fprintf(w, "Rank %d of %d, percentile %.1f, score %.4f\n", in.Rank, in.Total, in.Percentile, in.Score)
	} else {
		fmt.Fprintf(w, "Not ranked (%d items trending), score %.4f\n", in.Total, in.Score)
	}
	if len(in.ContributingFactors) > 0 {
		fmt.Fprintln(w, "\nContributing factors:")
		for _, f := range in.ContributingFactors {
			fmt.Fprintf(w, "  %-10s %6.1f%%  (%.1f points)\n", f.Name, f.Percent, f.Points)
		}
	}
	mu := in.Multipliers
	fmt.Fprintf(w, "\nMultipliers: velocity %.2f, diversity %.2f, recency %.1f, popularity %.2f, decay %.6f\n",
		mu.Velocity, mu.Diversity, mu.Recency, mu.BasePopularity, mu.TimeDecay)
	if mu.ColdStartBoost > 0 {
		fmt.Fprintf(w, "Cold-start boost: +%.4f\n", mu.ColdStartBoost)
	}
	if len(in.Insights) > 0 {
		fmt.Fprintln(w)
		for _, msg := range in.Insights {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// TruncateName shortens s to maxLen runes, marking the cut with "…".
func TruncateName(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 1 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
