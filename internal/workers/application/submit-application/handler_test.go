// internal/workers/application/submit-application/handler_test.go
package submitapplication

import (
	"context"
	"testing"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitApplication(ctx context.Context, principal models.Principal, in pipeline.SubmitInput) (*models.Application, error) {
	args := m.Called(ctx, principal, in)
	if app, ok := args.Get(0).(*models.Application); ok {
		return app, args.Error(1)
	}
	return nil, args.Error(1)
}

func newHandler(t *testing.T, svc Submitter) *Handler {
	return NewHandler(LoadConfig(), svc, validation.MustValidator(), logger.NewTestLogger(t))
}

func TestHandler_Execute_Success(t *testing.T) {
	svc := new(MockSubmitter)
	created := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

	svc.On("SubmitApplication", mock.Anything,
		models.Principal{ID: "applicant-1", Role: models.RoleApplicant},
		pipeline.SubmitInput{VacancyID: "vac-1", CVID: "cv-1"},
	).Return(&models.Application{
		ID:        "app-1",
		Status:    models.StatusApplied,
		Version:   1,
		CreatedAt: created,
	}, nil).Once()

	out, err := newHandler(t, svc).Execute(context.Background(), &Input{
		ActorID:   "applicant-1",
		ActorRole: "applicant",
		VacancyID: "vac-1",
		CVID:      "cv-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "app-1", out.ApplicationID)
	assert.Equal(t, "APPLIED", out.ApplicationStatus)
	assert.Equal(t, int64(1), out.Version)
	assert.Equal(t, "2026-02-01T08:30:00Z", out.CreatedAt)
	svc.AssertExpectations(t)
}

func TestHandler_Execute_InvalidActor(t *testing.T) {
	svc := new(MockSubmitter)

	_, err := newHandler(t, svc).Execute(context.Background(), &Input{ActorRole: "APPLICANT", VacancyID: "vac-1", CVID: "cv-1"})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	_, err = newHandler(t, svc).Execute(context.Background(), &Input{ActorID: "u-1", ActorRole: "JANITOR", VacancyID: "vac-1", CVID: "cv-1"})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	svc.AssertNotCalled(t, "SubmitApplication", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Execute_PropagatesBusinessErrors(t *testing.T) {
	svc := new(MockSubmitter)
	svc.On("SubmitApplication", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.NewDuplicateActionError("active application exists")).Once()

	_, err := newHandler(t, svc).Execute(context.Background(), &Input{
		ActorID: "applicant-1", ActorRole: "APPLICANT", VacancyID: "vac-1", CVID: "cv-1",
	})

	require.Error(t, err)
	bpmn := errors.ConvertToBPMNError(errors.AsStandard(err))
	assert.Equal(t, "DUPLICATE_ACTION", bpmn.Code)
	assert.False(t, bpmn.Retryable)
}

func TestHandler_Run_ValidatesVariables(t *testing.T) {
	svc := new(MockSubmitter)

	_, err := newHandler(t, svc).run(context.Background(), `{"actorId":"applicant-1","actorRole":"APPLICANT","vacancyId":"vac-1"}`)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	_, err = newHandler(t, svc).run(context.Background(), `not json`)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}
