package workflow

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"hiring-pipeline/internal/common/camunda"
	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishMessage(ctx context.Context, msg camunda.Message) (int64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(int64), args.Error(1)
}

func statusChanged() models.DomainEvent {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	e := models.NewDomainEvent(models.EventStatusChanged, "app-1",
		models.Principal{ID: "rec-1", Role: models.RoleRecruiter},
		map[string]interface{}{"from": "APPLIED", "to": "SCREENING"}, at)
	e.ID = "evt-1"
	return e
}

func TestDeliver_PublishesCorrelatedMessage(t *testing.T) {
	pub := new(MockPublisher)
	sink := NewSink(pub, time.Hour, logger.NewTestLogger(t))

	pub.On("PublishMessage", mock.Anything, mock.MatchedBy(func(msg camunda.Message) bool {
		return msg.Name == MessageName &&
			msg.CorrelationKey == "app-1" &&
			msg.ID == "evt-1" &&
			msg.TTL == time.Hour &&
			msg.Variables["eventType"] == "StatusChanged" &&
			msg.Variables["to"] == "SCREENING" &&
			msg.Variables["actorId"] == "rec-1" &&
			msg.Variables["occurredAt"] == "2026-03-02T10:00:00Z"
	})).Return(int64(2251799813685249), nil).Once()

	require.NoError(t, sink.Deliver(context.Background(), statusChanged()))
	pub.AssertExpectations(t)
}

func TestDeliver_DuplicateMessageIsSuccess(t *testing.T) {
	pub := new(MockPublisher)
	sink := NewSink(pub, time.Hour, logger.NewTestLogger(t))

	pub.On("PublishMessage", mock.Anything, mock.Anything).
		Return(int64(0), errors.NewDuplicateActionError("message already exists")).Once()

	assert.NoError(t, sink.Deliver(context.Background(), statusChanged()))
}

func TestDeliver_FailureIsRetryable(t *testing.T) {
	pub := new(MockPublisher)
	sink := NewSink(pub, time.Hour, logger.NewTestLogger(t))

	pub.On("PublishMessage", mock.Anything, mock.Anything).
		Return(int64(0), errors.NewExternalServiceError("zeebe", stderrors.New("unavailable"))).Once()

	err := sink.Deliver(context.Background(), statusChanged())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeWorkflowPublishFailed, errors.CodeOf(err))
	assert.True(t, errors.AsStandard(err).Retryable)
}

func TestVariables_EnvelopeWinsOverPayload(t *testing.T) {
	e := statusChanged()
	e.Payload["eventType"] = "spoofed"

	vars := variables(e)
	assert.Equal(t, "StatusChanged", vars["eventType"])
	assert.Equal(t, "APPLIED", vars["from"])
	assert.Equal(t, "app-1", vars["applicationId"])
}
