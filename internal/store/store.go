// Package store defines the persistence ports of the hiring pipeline. All
// mutating operations run inside WithinTx so that the entity change and its
// outbox event commit or roll back together.
package store

import (
	"context"
	"time"

	"hiring-pipeline/internal/models"
)

// Store opens transactions over the pipeline aggregates.
type Store interface {
	// WithinTx runs fn in a single transaction. A non-nil error from fn rolls
	// back every write made through tx.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional view over every repository.
type Tx interface {
	ApplicationRepository
	EvaluationRepository
	AssessmentRepository
	InterviewRepository
	EventWriter
}

type ApplicationRepository interface {
	// CreateApplication fails with DuplicateAction when an active application
	// exists for the same applicant and vacancy.
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	// FindActiveApplication returns nil, nil when there is none.
	FindActiveApplication(ctx context.Context, applicantID, vacancyID string) (*models.Application, error)
	ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
	// UpdateApplication writes status, notes and withdrawn reason if the stored
	// version still equals expectedVersion, and bumps the version. A stale
	// version yields ConcurrentModification.
	UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int64) error
	// TouchApplication bumps the version of an application whose child records
	// changed. Same staleness rule as UpdateApplication.
	TouchApplication(ctx context.Context, id string, expectedVersion int64, at time.Time) (int64, error)
}

type EvaluationRepository interface {
	InsertEvaluation(ctx context.Context, evaluation *models.Evaluation) error
	// ListEvaluations returns evaluations ordered by creation time.
	ListEvaluations(ctx context.Context, applicationID string) ([]models.Evaluation, error)
}

type AssessmentRepository interface {
	CreateTest(ctx context.Context, test *models.Test) error
	GetTest(ctx context.Context, id string) (*models.Test, error)
	// CreateAttempt fails with DuplicateAction if the pair already has one.
	CreateAttempt(ctx context.Context, attempt *models.TestAttempt) error
	GetAttempt(ctx context.Context, applicationID, testID string) (*models.TestAttempt, error)
	ListAttempts(ctx context.Context, applicationID string) ([]models.TestAttempt, error)
	// CompleteAttempt stores the result of an INVITED attempt. An attempt that
	// is already completed yields DuplicateAction.
	CompleteAttempt(ctx context.Context, attempt *models.TestAttempt) error
}

type InterviewRepository interface {
	// CreateInterview fails with DuplicateAction if a non-cancelled interview
	// already holds the round.
	CreateInterview(ctx context.Context, interview *models.Interview) error
	GetInterview(ctx context.Context, id string) (*models.Interview, error)
	// ListInterviews returns interviews ordered by round then creation time.
	ListInterviews(ctx context.Context, applicationID string) ([]models.Interview, error)
	UpdateInterview(ctx context.Context, interview *models.Interview, expectedVersion int64) error
}

type EventWriter interface {
	EnqueueEvent(ctx context.Context, event models.DomainEvent) error
}

// OutboxRepository is consumed by the outbox relay.
type OutboxRepository interface {
	// ClaimBatch leases up to limit pending events whose retry time has come.
	// An event is not claimed while an earlier pending event of the same
	// application is leased or waiting for its retry time.
	ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxRecord, error)
	MarkDelivered(ctx context.Context, eventID string) error
	// MarkFailed records a failed attempt. dead stops further delivery.
	MarkFailed(ctx context.Context, eventID, lastError string, nextAttemptAt time.Time, dead bool) error
	// Release returns a claimed event that was not attempted. The claim is
	// not counted as an attempt.
	Release(ctx context.Context, eventID string, availableAt time.Time) error
}
