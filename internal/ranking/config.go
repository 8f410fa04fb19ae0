package ranking

// RankingConfig holds all configuration for the ranking system.
type RankingConfig struct {
	// Composite blend weights
	RelevanceWeight  float64 `yaml:"relevance_weight"`  // default: 0.65
	EngagementWeight float64 `yaml:"engagement_weight"` // default: 0.20
	QualityWeight    float64 `yaml:"quality_weight"`    // default: 0.10
	RecencyWeight    float64 `yaml:"recency_weight"`    // default: 0.05

	// Field match points
	ExactNameScore   float64 `yaml:"exact_name_score"`   // default: 100
	ExactTagScore    float64 `yaml:"exact_tag_score"`    // default: 60
	PartialNameScore float64 `yaml:"partial_name_score"` // default: 40
	PartialTagScore  float64 `yaml:"partial_tag_score"`  // default: 30
	CategoryScore    float64 `yaml:"category_score"`     // default: 20
	TaglineScore     float64 `yaml:"tagline_score"`      // default: 15
	SecondaryScore   float64 `yaml:"secondary_score"`    // default: 12
	DescriptionScore float64 `yaml:"description_score"`  // default: 5

	// Variant multipliers applied to field points
	FuzzyMultiplier   float64 `yaml:"fuzzy_multiplier"`   // default: 0.6
	SynonymMultiplier float64 `yaml:"synonym_multiplier"` // default: 0.7
	WordMultiplier    float64 `yaml:"word_multiplier"`    // default: 0.5

	// ExactMatchBonus is added when the name equals the query.
	ExactMatchBonus float64 `yaml:"exact_match_bonus"` // default: 500
	MaxRelevance    float64 `yaml:"max_relevance"`     // default: 300
	MaxEngagement   float64 `yaml:"max_engagement"`    // default: 200
	ViewCap         int     `yaml:"view_cap"`          // default: 1000

	// Quality signals
	ImageScore           float64 `yaml:"image_score"`            // default: 10
	VerifiedScore        float64 `yaml:"verified_score"`         // default: 15
	LongDescriptionScore float64 `yaml:"long_description_score"` // default: 5
	LongDescriptionChars int     `yaml:"long_description_chars"` // default: 100

	// Recency
	RecencyWindowDays int     `yaml:"recency_window_days"` // default: 30
	RecencyMaxScore   float64 `yaml:"recency_max_score"`   // default: 20
}

// DefaultRankingConfig returns the default ranking configuration.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		RelevanceWeight:  0.65,
		EngagementWeight: 0.20,
		QualityWeight:    0.10,
		RecencyWeight:    0.05,

		ExactNameScore:   100,
		ExactTagScore:    60,
		PartialNameScore: 40,
		PartialTagScore:  30,
		CategoryScore:    20,
		TaglineScore:     15,
		SecondaryScore:   12,
		DescriptionScore: 5,

		FuzzyMultiplier:   0.6,
		SynonymMultiplier: 0.7,
		WordMultiplier:    0.5,

		ExactMatchBonus: 500,
		MaxRelevance:    300,
		MaxEngagement:   200,
		ViewCap:         1000,

		ImageScore:           10,
		VerifiedScore:        15,
		LongDescriptionScore: 5,
		LongDescriptionChars: 100,

		RecencyWindowDays: 30,
		RecencyMaxScore:   20,
	}
}

// ApplyDefaults fills zero values with defaults.
func (c *RankingConfig) ApplyDefaults() {
	d := DefaultRankingConfig()
	setFloat := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	setInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setFloat(&c.RelevanceWeight, d.RelevanceWeight)
	setFloat(&c.EngagementWeight, d.EngagementWeight)
	setFloat(&c.QualityWeight, d.QualityWeight)
	setFloat(&c.RecencyWeight, d.RecencyWeight)
	setFloat(&c.ExactNameScore, d.ExactNameScore)
	setFloat(&c.ExactTagScore, d.ExactTagScore)
	setFloat(&c.PartialNameScore, d.PartialNameScore)
	setFloat(&c.PartialTagScore, d.PartialTagScore)
	setFloat(&c.CategoryScore, d.CategoryScore)
	setFloat(&c.TaglineScore, d.TaglineScore)
	setFloat(&c.SecondaryScore, d.SecondaryScore)
	setFloat(&c.DescriptionScore, d.DescriptionScore)
	setFloat(&c.FuzzyMultiplier, d.FuzzyMultiplier)
	setFloat(&c.SynonymMultiplier, d.SynonymMultiplier)
	setFloat(&c.WordMultiplier, d.WordMultiplier)
	setFloat(&c.ExactMatchBonus, d.ExactMatchBonus)
	setFloat(&c.MaxRelevance, d.MaxRelevance)
	setFloat(&c.MaxEngagement, d.MaxEngagement)
	setInt(&c.ViewCap, d.ViewCap)
	setFloat(&c.ImageScore, d.ImageScore)
	setFloat(&c.VerifiedScore, d.VerifiedScore)
	setFloat(&c.LongDescriptionScore, d.LongDescriptionScore)
	setInt(&c.LongDescriptionChars, d.LongDescriptionChars)
	setInt(&c.RecencyWindowDays, d.RecencyWindowDays)
	setFloat(&c.RecencyMaxScore, d.RecencyMaxScore)
}
