package models

import (
	"fmt"
	"strings"
	"time"
)

type Recommendation string

const (
	RecommendationStrongHire Recommendation = "STRONG_HIRE"
	RecommendationProceed    Recommendation = "PROCEED"
	RecommendationHold       Recommendation = "HOLD"
	RecommendationReject     Recommendation = "REJECT"
)

func ParseRecommendation(s string) (Recommendation, error) {
	r := Recommendation(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RecommendationStrongHire, RecommendationProceed, RecommendationHold, RecommendationReject:
		return r, nil
	}
	return "", fmt.Errorf("unknown recommendation %q", s)
}

// IsPositive reports whether the recommendation counts toward an offer.
func (r Recommendation) IsPositive() bool {
	return r == RecommendationStrongHire || r == RecommendationProceed
}

type Evaluation struct {
	ID             string         `json:"id"`
	ApplicationID  string         `json:"applicationId"`
	EvaluatorID    string         `json:"evaluatorId"`
	EvaluatorRole  Role           `json:"evaluatorRole"`
	Rating         int            `json:"rating"`
	Comments       string         `json:"comments,omitempty"`
	Strengths      string         `json:"strengths,omitempty"`
	Weaknesses     string         `json:"weaknesses,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
	CreatedAt      time.Time      `json:"createdAt"`
}
