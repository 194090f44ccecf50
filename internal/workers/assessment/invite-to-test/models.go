// internal/workers/assessment/invite-to-test/models.go
package invitetotest

type Input struct {
	ActorID       string `json:"actorId"`
	ActorRole     string `json:"actorRole"`
	ApplicationID string `json:"applicationId"`
	TestID        string `json:"testId"`
}

type Output struct {
	AttemptID     string `json:"attemptId"`
	TestID        string `json:"testId"`
	AttemptStatus string `json:"attemptStatus"`
	TotalScore    int    `json:"totalScore"`
	InvitedAt     string `json:"invitedAt"` // ISO 8601
}
