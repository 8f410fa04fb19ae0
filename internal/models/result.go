package models

// Reason is the primary explanation for why a result matched.
type Reason string

const (
	ReasonName        Reason = "name"
	ReasonTag         Reason = "tag"
	ReasonCategory    Reason = "category"
	ReasonTagline     Reason = "tagline"
	ReasonDescription Reason = "description"
	ReasonSemantic    Reason = "semantic"
	ReasonOther       Reason = "other"
)

// Explanation describes which fields matched and how.
type Explanation struct {
	MatchedFields []Field `json:"matched_fields,omitempty"`
	Fuzzy         bool    `json:"fuzzy,omitempty"`
	Synonym       bool    `json:"synonym,omitempty"`
	Semantic      bool    `json:"semantic,omitempty"`
	PrimaryReason Reason  `json:"primary_reason"`
	Summary       string  `json:"summary"`
}

// ScoredResult is a document with its score components.
type ScoredResult struct {
	Document        *Document   `json:"document"`
	RelevanceScore  float64     `json:"relevance_score"`
	EngagementScore float64     `json:"engagement_score"`
	QualityScore    float64     `json:"quality_score"`
	RecencyScore    float64     `json:"recency_score"`
	FinalScore      float64     `json:"final_score"`
	SemanticScore   float64     `json:"semantic_score,omitempty"`
	Explanation     Explanation `json:"explanation"`
}

// KindResults is the ranked page for one kind plus the total lexical match count.
type KindResults struct {
	Results []*ScoredResult `json:"results"`
	// Total counts lexical matches, capped at the candidate pool.
	Total int `json:"total"`
	// Truncated is set when more documents matched than the pool holds.
	Truncated bool `json:"truncated,omitempty"`
	// Partial marks a page built without every pass; it is never cached.
	Partial bool `json:"-"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	RequestID string               `json:"request_id"`
	Query     string               `json:"query"`
	Results   map[Kind]KindResults `json:"results"`
	// Degraded lists kinds whose search failed or returned partial results.
	Degraded []Kind `json:"degraded,omitempty"`
	// Suggestions contains "did you mean" corrections for misspelled terms.
	Suggestions []string `json:"suggestions,omitempty"`
	QueryTime   int64    `json:"query_time_ms"`
}
