// test/e2e/pipeline_test.go
package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"hiring-pipeline/internal/common/camunda"
	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/evaluation"
	"hiring-pipeline/internal/interview"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/outbox"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/sinks/workflow"
	"hiring-pipeline/internal/store/memory"

	requesttransition "hiring-pipeline/internal/workers/application/request-transition"
	submitapplication "hiring-pipeline/internal/workers/application/submit-application"
	submitevaluation "hiring-pipeline/internal/workers/evaluation/submit-evaluation"
	completeinterview "hiring-pipeline/internal/workers/interview/complete-interview"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher stands in for the Zeebe gateway.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []camunda.Message
}

func (p *recordingPublisher) PublishMessage(ctx context.Context, msg camunda.Message) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return int64(len(p.messages)), nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.Variables["eventType"].(string))
	}
	return out
}

type journey struct {
	store      *memory.Store
	scheduler  *interview.Scheduler
	submit     *submitapplication.Handler
	transition *requesttransition.Handler
	evaluate   *submitevaluation.Handler
	complete   *completeinterview.Handler
	relay      *outbox.Relay
	publisher  *recordingPublisher
}

func newJourney(t *testing.T) *journey {
	t.Helper()
	log := logger.NewTestLogger(t)
	validator := validation.MustValidator()
	st := memory.New()
	publisher := &recordingPublisher{}

	svc := pipeline.NewService(st, pipeline.Config{}, log)
	scheduler := interview.NewScheduler(st, log)
	ledger := evaluation.NewLedger(st, evaluation.DefaultConfig(), log)

	return &journey{
		store:      st,
		scheduler:  scheduler,
		submit:     submitapplication.NewHandler(submitapplication.LoadConfig(), svc, validator, log),
		transition: requesttransition.NewHandler(requesttransition.LoadConfig(), svc, validator, log),
		evaluate:   submitevaluation.NewHandler(submitevaluation.LoadConfig(), ledger, validator, log),
		complete:   completeinterview.NewHandler(completeinterview.LoadConfig(), scheduler, validator, log),
		relay: outbox.NewRelay(st, []outbox.Sink{workflow.NewSink(publisher, time.Hour, log)}, outbox.Config{
			PollInterval: 10 * time.Millisecond,
			BatchSize:    50,
			Concurrency:  2,
			Lease:        time.Minute,
			MaxAttempts:  3,
			BaseBackoff:  time.Second,
			MaxBackoff:   time.Minute,
		}, log),
		publisher: publisher,
	}
}

func (j *journey) move(t *testing.T, appID, actorID, role, to string) *requesttransition.Output {
	t.Helper()
	out, err := j.transition.Execute(context.Background(), &requesttransition.Input{
		ActorID:       actorID,
		ActorRole:     role,
		ApplicationID: appID,
		To:            to,
	})
	require.NoError(t, err, "move to %s", to)
	return out
}

func (j *journey) drain(t *testing.T) {
	t.Helper()
	for {
		n, err := j.relay.PollOnce(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return
		}
	}
}

func TestHiringJourney(t *testing.T) {
	ctx := context.Background()
	j := newJourney(t)

	submitted, err := j.submit.Execute(ctx, &submitapplication.Input{
		ActorID:   "applicant-1",
		ActorRole: "APPLICANT",
		VacancyID: "vac-1",
		CVID:      "cv-1",
	})
	require.NoError(t, err)
	appID := submitted.ApplicationID

	j.move(t, appID, "recruiter-1", "RECRUITER", "SCREENING")
	j.move(t, appID, "recruiter-1", "RECRUITER", "INTERVIEW_R1")

	// the offer gate stays closed until the round is completed and evaluated
	_, err = j.transition.Execute(ctx, &requesttransition.Input{
		ActorID: "recruiter-1", ActorRole: "RECRUITER", ApplicationID: appID, To: "OFFERED",
	})
	assert.Equal(t, errors.ErrCodeGateNotSatisfied, errors.CodeOf(err))

	scheduled, err := j.scheduler.Schedule(ctx, models.Principal{ID: "recruiter-1", Role: models.RoleRecruiter}, interview.ScheduleInput{
		ApplicationID:   appID,
		Round:           1,
		ScheduledAt:     time.Now().Add(48 * time.Hour),
		DurationMinutes: 45,
		InterviewerIDs:  []string{"iv-1"},
	})
	require.NoError(t, err)

	completed, err := j.complete.Execute(ctx, &completeinterview.Input{
		ActorID:     "recruiter-1",
		ActorRole:   "RECRUITER",
		InterviewID: scheduled.ID,
		Verdicts:    []models.Verdict{{InterviewerID: "iv-1", Attended: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", completed.InterviewStatus)

	evaluated, err := j.evaluate.Execute(ctx, &submitevaluation.Input{
		ActorID:        "iv-1",
		ActorRole:      "INTERVIEWER",
		ApplicationID:  appID,
		Rating:         8,
		Recommendation: "PROCEED",
	})
	require.NoError(t, err)
	assert.True(t, evaluated.SignalSatisfied)

	j.move(t, appID, "recruiter-1", "RECRUITER", "OFFERED")
	hired := j.move(t, appID, "recruiter-1", "RECRUITER", "HIRED")
	assert.True(t, hired.Terminal)

	// nothing moves out of a terminal status
	_, err = j.transition.Execute(ctx, &requesttransition.Input{
		ActorID: "applicant-1", ActorRole: "APPLICANT", ApplicationID: appID, To: "WITHDRAWN",
	})
	assert.Equal(t, errors.ErrCodeIllegalTransition, errors.CodeOf(err))

	j.drain(t)
	assert.Equal(t, []string{
		string(models.EventApplicationSubmitted),
		string(models.EventStatusChanged),
		string(models.EventStatusChanged),
		string(models.EventInterviewScheduled),
		string(models.EventInterviewCompleted),
		string(models.EventEvaluationSubmitted),
		string(models.EventStatusChanged),
		string(models.EventStatusChanged),
	}, j.publisher.eventTypes())

	for _, event := range j.store.Events() {
		status, _, ok := j.store.OutboxStatus(event.ID)
		require.True(t, ok)
		assert.Equal(t, models.OutboxDelivered, status, "event %s", event.Type)
	}

	for _, msg := range j.publisher.messages {
		assert.Equal(t, workflow.MessageName, msg.Name)
		assert.Equal(t, appID, msg.CorrelationKey)
	}
}

func TestWithdrawnApplicationFreesVacancy(t *testing.T) {
	ctx := context.Background()
	j := newJourney(t)
	input := &submitapplication.Input{ActorID: "applicant-1", ActorRole: "APPLICANT", VacancyID: "vac-1", CVID: "cv-1"}

	first, err := j.submit.Execute(ctx, input)
	require.NoError(t, err)

	_, err = j.submit.Execute(ctx, input)
	assert.Equal(t, errors.ErrCodeDuplicateAction, errors.CodeOf(err))

	withdrawn := j.move(t, first.ApplicationID, "applicant-1", "APPLICANT", "WITHDRAWN")
	assert.Equal(t, "WITHDRAWN", withdrawn.ApplicationStatus)

	second, err := j.submit.Execute(ctx, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ApplicationID, second.ApplicationID)
}
