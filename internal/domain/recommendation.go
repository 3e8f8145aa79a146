package domain

import "time"

// Recommendation is an advisory schedule adjustment. It is never applied
// automatically.
type Recommendation struct {
	Provider            Provider      `json:"provider"`
	RecommendedInterval int           `json:"recommended_interval_minutes"`
	Reason              string        `json:"reason"`
	Confidence          float64       `json:"confidence"`
	EstimatedDuration   time.Duration `json:"estimated_duration"`
}
