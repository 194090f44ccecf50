package evaluation

import (
	"time"

	"hiring-pipeline/internal/models"
)

// Signal summarises the evaluation ledger of one application for the offer gate.
type Signal struct {
	Count          int       `json:"count"`
	AverageRating  float64   `json:"averageRating"`
	LatestPositive time.Time `json:"latestPositive,omitempty"`
	LatestReject   time.Time `json:"latestReject,omitempty"`
}

// Aggregate folds evaluations into a Signal. HOLD counts toward the average
// but neither opens nor blocks the gate.
func Aggregate(evaluations []models.Evaluation) Signal {
	var (
		s   Signal
		sum int
	)
	for _, e := range evaluations {
		s.Count++
		sum += e.Rating
		switch {
		case e.Recommendation.IsPositive():
			if e.CreatedAt.After(s.LatestPositive) {
				s.LatestPositive = e.CreatedAt
			}
		case e.Recommendation == models.RecommendationReject:
			if e.CreatedAt.After(s.LatestReject) {
				s.LatestReject = e.CreatedAt
			}
		}
	}
	if s.Count > 0 {
		s.AverageRating = float64(sum) / float64(s.Count)
	}
	return s
}

// Satisfied is true when a positive evaluation exists and no REJECT is newer
// than the latest positive one.
func (s Signal) Satisfied() bool {
	if s.LatestPositive.IsZero() {
		return false
	}
	return !s.LatestReject.After(s.LatestPositive)
}
