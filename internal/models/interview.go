package models

import "time"

type InterviewState string

const (
	InterviewScheduled   InterviewState = "SCHEDULED"
	InterviewRescheduled InterviewState = "RESCHEDULED"
	InterviewCompleted   InterviewState = "COMPLETED"
	InterviewCancelled   InterviewState = "CANCELLED"
)

func (s InterviewState) IsTerminal() bool {
	return s == InterviewCompleted || s == InterviewCancelled
}

type InterviewerAssignment struct {
	InterviewID    string          `json:"interviewId"`
	InterviewerID  string          `json:"interviewerId"`
	Attended       bool            `json:"attended"`
	Rating         *int            `json:"rating,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

type Interview struct {
	ID               string                  `json:"id"`
	ApplicationID    string                  `json:"applicationId"`
	Round            int                     `json:"round"`
	ScheduledAt      time.Time               `json:"scheduledAt"`
	DurationMinutes  int                     `json:"durationMinutes"`
	Status           InterviewState          `json:"status"`
	RescheduleReason string                  `json:"rescheduleReason,omitempty"`
	CancelReason     string                  `json:"cancelReason,omitempty"`
	Assignments      []InterviewerAssignment `json:"assignments"`
	Version          int64                   `json:"version"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
	CompletedAt      *time.Time              `json:"completedAt,omitempty"`
}

// HasInterviewer reports whether interviewerID is assigned.
func (i Interview) HasInterviewer(interviewerID string) bool {
	for _, a := range i.Assignments {
		if a.InterviewerID == interviewerID {
			return true
		}
	}
	return false
}

// InterviewerIDs lists assigned interviewer ids in assignment order.
func (i Interview) InterviewerIDs() []string {
	ids := make([]string, 0, len(i.Assignments))
	for _, a := range i.Assignments {
		ids = append(ids, a.InterviewerID)
	}
	return ids
}

// Clone returns a deep copy.
func (i Interview) Clone() Interview {
	out := i
	out.Assignments = make([]InterviewerAssignment, len(i.Assignments))
	copy(out.Assignments, i.Assignments)
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Verdict is one interviewer's outcome submitted on completion.
type Verdict struct {
	InterviewerID  string          `json:"interviewerId"`
	Attended       bool            `json:"attended"`
	Rating         *int            `json:"rating,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// RoundOutcome is the gate signal for one interview round.
type RoundOutcome string

const (
	RoundNone      RoundOutcome = "NONE"
	RoundPending   RoundOutcome = "PENDING"
	RoundCompleted RoundOutcome = "COMPLETED"
)
