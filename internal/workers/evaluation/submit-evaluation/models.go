// internal/workers/evaluation/submit-evaluation/models.go
package submitevaluation

type Input struct {
	ActorID        string `json:"actorId"`
	ActorRole      string `json:"actorRole"`
	ApplicationID  string `json:"applicationId"`
	Rating         int    `json:"rating"`
	Comments       string `json:"comments,omitempty"`
	Strengths      string `json:"strengths,omitempty"`
	Weaknesses     string `json:"weaknesses,omitempty"`
	Recommendation string `json:"recommendation"`
}

// Output carries the refreshed evaluation signal so gateways in the process
// can route on it without another lookup.
type Output struct {
	EvaluationID    string  `json:"evaluationId"`
	Recommendation  string  `json:"recommendation"`
	EvaluationCount int     `json:"evaluationCount"`
	AverageRating   float64 `json:"averageRating"`
	SignalSatisfied bool    `json:"evaluationSignalSatisfied"`
}
