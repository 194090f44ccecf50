// internal/workers/interview/complete-interview/models.go
package completeinterview

import "hiring-pipeline/internal/models"

type Input struct {
	ActorID     string           `json:"actorId"`
	ActorRole   string           `json:"actorRole"`
	InterviewID string           `json:"interviewId"`
	Verdicts    []models.Verdict `json:"verdicts"`
}

type Output struct {
	InterviewID     string `json:"interviewId"`
	ApplicationID   string `json:"applicationId"`
	InterviewStatus string `json:"interviewStatus"`
	Round           int    `json:"interviewRound"`
	AttendedCount   int    `json:"attendedCount"`
	CompletedAt     string `json:"completedAt"` // ISO 8601
}
