// internal/workers/assessment/invite-to-test/handler_test.go
package invitetotest

import (
	"context"
	"testing"
	"time"

	"hiring-pipeline/internal/assessment"
	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recruiter = models.Principal{ID: "recruiter-1", Role: models.RoleRecruiter}

func setup(t *testing.T) (*Handler, string, string) {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	st := memory.New()
	now := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)

	app, err := pipeline.NewService(st, pipeline.Config{}, log).SubmitApplication(ctx,
		models.Principal{ID: "applicant-1", Role: models.RoleApplicant},
		pipeline.SubmitInput{VacancyID: "vac-1", CVID: "cv-1"})
	require.NoError(t, err)

	svc := assessment.NewService(st, log, assessment.WithClock(func() time.Time { return now }))
	test, err := svc.CreateTest(ctx, recruiter, assessment.TestDefinition{
		VacancyID:    "vac-1",
		Title:        "Take-home exercise",
		Kind:         models.TestKindExternalLink,
		ExternalURL:  "https://assess.example.com/t/42",
		PassingScore: 60,
	})
	require.NoError(t, err)

	return NewHandler(LoadConfig(), svc, validation.MustValidator(), log), app.ID, test.ID
}

func TestHandler_Execute_Invites(t *testing.T) {
	h, appID, testID := setup(t)

	out, err := h.Execute(context.Background(), &Input{
		ActorID:       recruiter.ID,
		ActorRole:     "RECRUITER",
		ApplicationID: appID,
		TestID:        testID,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, out.AttemptID)
	assert.Equal(t, testID, out.TestID)
	assert.Equal(t, "INVITED", out.AttemptStatus)
	assert.Equal(t, "2026-02-03T08:00:00Z", out.InvitedAt)
}

func TestHandler_Execute_SecondInviteIsDuplicate(t *testing.T) {
	h, appID, testID := setup(t)
	input := &Input{ActorID: recruiter.ID, ActorRole: "RECRUITER", ApplicationID: appID, TestID: testID}

	_, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), input)
	assert.Equal(t, errors.ErrCodeDuplicateAction, errors.CodeOf(err))
}

func TestHandler_Execute_Rejections(t *testing.T) {
	h, appID, testID := setup(t)

	_, err := h.Execute(context.Background(), &Input{ActorID: "manager-1", ActorRole: "MANAGER", ApplicationID: appID, TestID: testID})
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))

	_, err = h.Execute(context.Background(), &Input{ActorID: recruiter.ID, ActorRole: "RECRUITER", ApplicationID: appID, TestID: "missing"})
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestHandler_Run_ValidatesVariables(t *testing.T) {
	h, appID, _ := setup(t)

	_, err := h.run(context.Background(), `{"actorId":"recruiter-1","actorRole":"RECRUITER","applicationId":"`+appID+`"}`)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}
