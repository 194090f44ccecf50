package pipeline

import (
	"testing"

	"hiring-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		from  models.ApplicationStatus
		to    models.ApplicationStatus
		legal bool
		gates []Gate
	}{
		{models.StatusApplied, models.StatusScreening, true, nil},
		{models.StatusApplied, models.StatusRejected, true, nil},
		{models.StatusApplied, models.StatusShortlisted, false, nil},
		{models.StatusApplied, models.InterviewStatus(1), false, nil},
		{models.StatusApplied, models.StatusOffered, false, nil},
		{models.StatusScreening, models.StatusShortlisted, true, nil},
		{models.StatusScreening, models.StatusUnderReview, true, nil},
		{models.StatusScreening, models.InterviewStatus(1), true, []Gate{GateAssessment}},
		{models.StatusScreening, models.InterviewStatus(2), false, nil},
		{models.StatusShortlisted, models.StatusUnderReview, true, nil},
		{models.StatusUnderReview, models.StatusShortlisted, true, nil},
		{models.StatusUnderReview, models.InterviewStatus(1), true, []Gate{GateAssessment}},
		{models.InterviewStatus(1), models.InterviewStatus(2), true, []Gate{GateRoundCompleted}},
		{models.InterviewStatus(1), models.InterviewStatus(1), false, nil},
		{models.InterviewStatus(1), models.InterviewStatus(3), false, nil},
		{models.InterviewStatus(3), models.InterviewStatus(4), true, []Gate{GateRoundCompleted}},
		{models.InterviewStatus(2), models.StatusOffered, true, []Gate{GateRoundCompleted, GateEvaluation}},
		{models.InterviewStatus(2), models.StatusScreening, false, nil},
		{models.StatusOffered, models.StatusHired, true, nil},
		{models.StatusOffered, models.InterviewStatus(1), false, nil},
		{models.StatusHired, models.StatusRejected, false, nil},
		{models.StatusRejected, models.StatusScreening, false, nil},
		{models.StatusWithdrawn, models.StatusApplied, false, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			rule, ok := Lookup(tt.from, tt.to)
			assert.Equal(t, tt.legal, ok)
			if ok {
				assert.Equal(t, tt.gates, rule.Gates)
			}
		})
	}
}

func TestLookup_WithdrawIsApplicantOnly(t *testing.T) {
	for _, from := range []models.ApplicationStatus{
		models.StatusApplied, models.StatusScreening, models.StatusShortlisted,
		models.StatusUnderReview, models.InterviewStatus(2), models.StatusOffered,
	} {
		rule, ok := Lookup(from, models.StatusWithdrawn)
		assert.True(t, ok, from)
		assert.True(t, rule.OwnerOnly, from)
		assert.Equal(t, []models.Role{models.RoleApplicant}, rule.Roles, from)
	}
}

func TestTargets(t *testing.T) {
	assert.Equal(t, []models.ApplicationStatus{
		models.StatusScreening, models.StatusRejected, models.StatusWithdrawn,
	}, Targets(models.StatusApplied))

	assert.Equal(t, []models.ApplicationStatus{
		models.InterviewStatus(3), models.StatusOffered, models.StatusRejected, models.StatusWithdrawn,
	}, Targets(models.InterviewStatus(2)))

	assert.Empty(t, Targets(models.StatusHired))
	assert.Empty(t, Targets(models.StatusRejected))
}
