// internal/workers/application/submit-application/models.go
package submitapplication

// Input is read from the process variables. The applicant is the actor.
type Input struct {
	ActorID            string  `json:"actorId"`
	ActorRole          string  `json:"actorRole"`
	VacancyID          string  `json:"vacancyId"`
	CVID               string  `json:"cvId"`
	MotivationLetterID *string `json:"motivationLetterId,omitempty"`
	Notes              string  `json:"notes,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	Version           int64  `json:"applicationVersion"`
	CreatedAt         string `json:"createdAt"` // ISO 8601
}
