package interview

import "hiring-pipeline/internal/models"

// NextRound is one past the highest round held by a non-cancelled interview.
func NextRound(interviews []models.Interview) int {
	highest := 0
	for _, i := range interviews {
		if i.Status != models.InterviewCancelled && i.Round > highest {
			highest = i.Round
		}
	}
	return highest + 1
}

// RoundOutcome reports whether round has a completed interview. Cancelled
// interviews are ignored.
func RoundOutcome(interviews []models.Interview, round int) models.RoundOutcome {
	outcome := models.RoundNone
	for _, i := range interviews {
		if i.Round != round || i.Status == models.InterviewCancelled {
			continue
		}
		if i.Status == models.InterviewCompleted {
			return models.RoundCompleted
		}
		outcome = models.RoundPending
	}
	return outcome
}

// HasActiveAssignment reports whether interviewerID is assigned to any
// non-cancelled interview.
func HasActiveAssignment(interviews []models.Interview, interviewerID string) bool {
	for _, i := range interviews {
		if i.Status != models.InterviewCancelled && i.HasInterviewer(interviewerID) {
			return true
		}
	}
	return false
}
