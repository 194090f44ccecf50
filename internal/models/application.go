package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ApplicationStatus string

const (
	StatusApplied     ApplicationStatus = "APPLIED"
	StatusScreening   ApplicationStatus = "SCREENING"
	StatusShortlisted ApplicationStatus = "SHORTLISTED"
	StatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	StatusOffered     ApplicationStatus = "OFFERED"
	StatusHired       ApplicationStatus = "HIRED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusWithdrawn   ApplicationStatus = "WITHDRAWN"

	interviewStatusPrefix = "INTERVIEW_R"
)

// InterviewStatus returns the INTERVIEW_R{n} status for round n.
func InterviewStatus(round int) ApplicationStatus {
	return ApplicationStatus(fmt.Sprintf("%s%d", interviewStatusPrefix, round))
}

// ParseApplicationStatus accepts the fixed statuses and INTERVIEW_R{n} with n >= 1.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	status := ApplicationStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case StatusApplied, StatusScreening, StatusShortlisted, StatusUnderReview,
		StatusOffered, StatusHired, StatusRejected, StatusWithdrawn:
		return status, nil
	}
	if _, ok := status.InterviewRound(); ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// InterviewRound reports the round of an INTERVIEW_R{n} status.
func (s ApplicationStatus) InterviewRound() (int, bool) {
	str := string(s)
	if !strings.HasPrefix(str, interviewStatusPrefix) {
		return 0, false
	}
	digits := str[len(interviewStatusPrefix):]
	if digits == "" || digits[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (s ApplicationStatus) IsInterview() bool {
	_, ok := s.InterviewRound()
	return ok
}

func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusHired || s == StatusRejected || s == StatusWithdrawn
}

// IsActive reports whether the application blocks a new one for the same vacancy.
func (s ApplicationStatus) IsActive() bool {
	return s != StatusRejected && s != StatusWithdrawn
}

type Application struct {
	ID                 string            `json:"id"`
	VacancyID          string            `json:"vacancyId"`
	ApplicantID        string            `json:"applicantId"`
	CVID               string            `json:"cvId"`
	MotivationLetterID *string           `json:"motivationLetterId,omitempty"`
	Status             ApplicationStatus `json:"status"`
	Notes              string            `json:"notes,omitempty"`
	WithdrawnReason    *string           `json:"withdrawnReason,omitempty"`
	Version            int64             `json:"version"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy.
func (a Application) Clone() Application {
	out := a
	if a.MotivationLetterID != nil {
		v := *a.MotivationLetterID
		out.MotivationLetterID = &v
	}
	if a.WithdrawnReason != nil {
		v := *a.WithdrawnReason
		out.WithdrawnReason = &v
	}
	return out
}

type ApplicationFilter struct {
	VacancyID   string            `json:"vacancyId,omitempty"`
	ApplicantID string            `json:"applicantId,omitempty"`
	Status      ApplicationStatus `json:"status,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Offset      int               `json:"offset,omitempty"`
}
