// Package workflow forwards domain events to running BPMN processes as
// correlated Zeebe messages.
package workflow

import (
	"context"
	"time"

	"hiring-pipeline/internal/common/camunda"
	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/models"
)

const (
	SinkName = "workflow"

	// MessageName is the single message every pipeline process subscribes to.
	// Processes branch on the eventType variable.
	MessageName = "pipeline-event"
)

// Publisher is satisfied by *camunda.Client.
type Publisher interface {
	PublishMessage(ctx context.Context, msg camunda.Message) (int64, error)
}

type Sink struct {
	publisher Publisher
	ttl       time.Duration
	logger    logger.Logger
}

func NewSink(publisher Publisher, ttl time.Duration, log logger.Logger) *Sink {
	return &Sink{
		publisher: publisher,
		ttl:       ttl,
		logger:    log.WithFields(map[string]interface{}{"sink": SinkName}),
	}
}

func (s *Sink) Name() string { return SinkName }

// Deliver publishes event correlated by application id. The message id is the
// event id, so a redelivered event is not published twice.
func (s *Sink) Deliver(ctx context.Context, event models.DomainEvent) error {
	key, err := s.publisher.PublishMessage(ctx, camunda.Message{
		Name:           MessageName,
		CorrelationKey: event.ApplicationID,
		ID:             event.ID,
		TTL:            s.ttl,
		Variables:      variables(event),
	})
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeDuplicateAction {
			return nil
		}
		return errors.NewWorkflowPublishFailedError(err).
			WithMetadata("eventId", event.ID).
			WithMetadata("eventType", string(event.Type))
	}

	s.logger.Debug("message published", map[string]interface{}{
		"eventId":       event.ID,
		"eventType":     string(event.Type),
		"applicationId": event.ApplicationID,
		"messageKey":    key,
	})
	return nil
}

// variables flattens the event into process variables. Payload keys are
// copied as they are; the envelope fields win on collision.
func variables(event models.DomainEvent) map[string]interface{} {
	vars := make(map[string]interface{}, len(event.Payload)+5)
	for k, v := range event.Payload {
		vars[k] = v
	}
	vars["eventId"] = event.ID
	vars["eventType"] = string(event.Type)
	vars["applicationId"] = event.ApplicationID
	vars["actorId"] = event.Actor.ID
	vars["occurredAt"] = event.OccurredAt.Format(time.RFC3339)
	return vars
}
