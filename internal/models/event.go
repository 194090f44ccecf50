package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventApplicationSubmitted EventType = "ApplicationSubmitted"
	EventStatusChanged        EventType = "StatusChanged"
	EventEvaluationSubmitted  EventType = "EvaluationSubmitted"
	EventTestCreated          EventType = "TestCreated"
	EventTestInvited          EventType = "TestInvited"
	EventTestCompleted        EventType = "TestCompleted"
	EventInterviewScheduled   EventType = "InterviewScheduled"
	EventInterviewRescheduled EventType = "InterviewRescheduled"
	EventInterviewCancelled   EventType = "InterviewCancelled"
	EventInterviewCompleted   EventType = "InterviewCompleted"
)

// DomainEvent is the immutable record of one state change. It is written to
// the outbox in the same transaction as the change itself.
type DomainEvent struct {
	ID            string                 `json:"id"`
	Type          EventType              `json:"type"`
	ApplicationID string                 `json:"applicationId"`
	Actor         Principal              `json:"actor"`
	Payload       map[string]interface{} `json:"payload"`
	OccurredAt    time.Time              `json:"occurredAt"`
}

func NewDomainEvent(eventType EventType, applicationID string, actor Principal, payload map[string]interface{}, at time.Time) DomainEvent {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return DomainEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		ApplicationID: applicationID,
		Actor:         actor,
		Payload:       payload,
		OccurredAt:    at.UTC(),
	}
}

// PayloadString reads a string payload entry.
func (e DomainEvent) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadStrings reads a string list payload entry, accepting the []interface{}
// shape produced by JSON decoding.
func (e DomainEvent) PayloadStrings(key string) []string {
	switch v := e.Payload[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxDead      OutboxStatus = "dead"
)

// OutboxRecord is a claimed outbox row awaiting delivery.
type OutboxRecord struct {
	Event    DomainEvent `json:"event"`
	Attempts int         `json:"attempts"`
}
