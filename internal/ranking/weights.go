package ranking

import "github.com/hyperjump/rankd/internal/models"

// EngagementWeights scale raw engagement counts.
type EngagementWeights struct {
	Upvote  float64
	View    float64
	Comment float64
}

// KindWeights is the weight table of one entity kind.
type KindWeights struct {
	// Fields multiplies the match points of each field; missing fields weigh 1.
	Fields     map[models.Field]float64
	Engagement EngagementWeights
}

// Field returns the multiplier for f.
func (w KindWeights) Field(f models.Field) float64 {
	if v, ok := w.Fields[f]; ok {
		return v
	}
	return 1
}

var kindWeights = map[models.Kind]KindWeights{
	models.KindProducts: {
		Engagement: EngagementWeights{Upvote: 2, View: 0.01, Comment: 1.5},
	},
	models.KindJobs: {
		Fields: map[models.Field]float64{
			models.FieldCompany:  1.3,
			models.FieldLocation: 1.2,
		},
		Engagement: EngagementWeights{Upvote: 1, View: 0.02, Comment: 0.5},
	},
	models.KindProjects: {
		Fields: map[models.Field]float64{
			models.FieldTags: 1.2,
		},
		Engagement: EngagementWeights{Upvote: 2, View: 0.01, Comment: 1.5},
	},
	models.KindUsers: {
		Fields: map[models.Field]float64{
			models.FieldName:        1.2,
			models.FieldTags:        1.3,
			models.FieldDescription: 0.8,
		},
		Engagement: EngagementWeights{Upvote: 1, View: 0.02, Comment: 0.5},
	},
}

// WeightsFor returns the weight table of kind.
func WeightsFor(kind models.Kind) KindWeights {
	if w, ok := kindWeights[kind]; ok {
		return w
	}
	return kindWeights[models.KindProducts]
}
