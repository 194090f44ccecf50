// internal/workers/application/request-transition/models.go
package requesttransition

type Input struct {
	ActorID         string `json:"actorId"`
	ActorRole       string `json:"actorRole"`
	ApplicationID   string `json:"applicationId"`
	To              string `json:"to"`
	Notes           string `json:"notes,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ExpectedStatus  string `json:"expectedStatus,omitempty"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	Version           int64  `json:"applicationVersion"`
	Terminal          bool   `json:"applicationTerminal"`
}
