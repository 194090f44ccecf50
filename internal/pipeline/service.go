// Package pipeline owns the status of applications. Every status change goes
// through RequestTransition, which checks the transition table, the caller's
// role and the gates before writing the change and its event together.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hiring-pipeline/internal/assessment"
	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/lock"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/common/observability"
	"hiring-pipeline/internal/evaluation"
	"hiring-pipeline/internal/interview"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/store"

	"github.com/google/uuid"
)

type Config struct {
	// RequireTestsBeforeInterview gates the first interview on the assessment
	// signal being PASS, or NONE when no test was issued.
	RequireTestsBeforeInterview bool
}

// SubmitInput is an applicant's new application.
type SubmitInput struct {
	VacancyID          string  `json:"vacancyId"`
	CVID               string  `json:"cvId"`
	MotivationLetterID *string `json:"motivationLetterId,omitempty"`
	Notes              string  `json:"notes,omitempty"`
}

// TransitionRequest asks for one status change. ExpectedStatus and
// ExpectedVersion, when set, pin the state the caller decided on; a mismatch
// fails with ConcurrentModification instead of re-evaluating the request
// against a state the caller never saw.
type TransitionRequest struct {
	ApplicationID   string                   `json:"applicationId"`
	To              models.ApplicationStatus `json:"to"`
	Notes           string                   `json:"notes,omitempty"`
	Reason          string                   `json:"reason,omitempty"`
	ExpectedStatus  models.ApplicationStatus `json:"expectedStatus,omitempty"`
	ExpectedVersion *int64                   `json:"expectedVersion,omitempty"`
}

type Service struct {
	store  store.Store
	locker lock.Locker
	obs    *observability.Observability
	config Config
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option { return func(s *Service) { s.locker = l } }

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) { s.obs = o }
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, config Config, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		locker: lock.Noop{},
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "pipeline"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitApplication creates an APPLIED application for the calling applicant.
func (s *Service) SubmitApplication(ctx context.Context, principal models.Principal, in SubmitInput) (result *models.Application, err error) {
	ctx, done := s.track(ctx, "submit_application")
	defer func() { done(err) }()

	if principal.Role != models.RoleApplicant || principal.ID == "" {
		return nil, errors.NewUnauthorizedError("only applicants submit applications")
	}
	in.VacancyID = strings.TrimSpace(in.VacancyID)
	in.CVID = strings.TrimSpace(in.CVID)
	if in.VacancyID == "" {
		return nil, errors.NewValidationError("vacancyId is required")
	}
	if in.CVID == "" {
		return nil, errors.NewValidationError("cvId is required")
	}
	if in.MotivationLetterID != nil && strings.TrimSpace(*in.MotivationLetterID) == "" {
		in.MotivationLetterID = nil
	}

	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		existing, err := tx.FindActiveApplication(ctx, principal.ID, in.VacancyID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.NewDuplicateActionError("an active application exists for this vacancy").
				WithMetadata("applicationId", existing.ID)
		}

		now := s.now().UTC()
		app := &models.Application{
			ID:                 uuid.New().String(),
			VacancyID:          in.VacancyID,
			ApplicantID:        principal.ID,
			CVID:               in.CVID,
			MotivationLetterID: in.MotivationLetterID,
			Status:             models.StatusApplied,
			Notes:              strings.TrimSpace(in.Notes),
			Version:            1,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		event := models.NewDomainEvent(models.EventApplicationSubmitted, app.ID, principal, map[string]interface{}{
			"applicantId": app.ApplicantID,
			"vacancyId":   app.VacancyID,
			"status":      string(app.Status),
		}, now)
		if err := tx.EnqueueEvent(ctx, event); err != nil {
			return err
		}
		result = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Application submitted", map[string]interface{}{
		"applicationId": result.ID,
		"vacancyId":     result.VacancyID,
		"applicantId":   result.ApplicantID,
	})
	return result, nil
}

// RequestTransition moves an application to req.To. Checks run in a fixed
// order so callers see the most specific failure: unknown target, unknown
// application, stale expectation, undeclared edge, role, gates.
func (s *Service) RequestTransition(ctx context.Context, principal models.Principal, req TransitionRequest) (result *models.Application, err error) {
	ctx, done := s.track(ctx, "request_transition")
	defer func() { done(err) }()

	if principal.ID == "" {
		return nil, errors.NewUnauthorizedError("caller is not identified")
	}
	to, err := models.ParseApplicationStatus(string(req.To))
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	var expectedStatus models.ApplicationStatus
	if req.ExpectedStatus != "" {
		if expectedStatus, err = models.ParseApplicationStatus(string(req.ExpectedStatus)); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}

	release, err := s.locker.Lock(ctx, lock.ApplicationKey(req.ApplicationID))
	if err != nil {
		return nil, err
	}
	defer release()

	var from models.ApplicationStatus
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		app, err := tx.GetApplication(ctx, req.ApplicationID)
		if err != nil {
			return err
		}
		if expectedStatus != "" && app.Status != expectedStatus {
			return errors.NewConcurrentModificationError("application", app.ID).
				WithMetadata("currentStatus", string(app.Status))
		}
		if req.ExpectedVersion != nil && app.Version != *req.ExpectedVersion {
			return errors.NewConcurrentModificationError("application", app.ID).
				WithMetadata("currentVersion", app.Version)
		}

		from = app.Status
		rule, ok := Lookup(from, to)
		if !ok {
			return errors.NewIllegalTransitionError(string(from), string(to))
		}
		if !principal.HasRole(rule.Roles...) {
			return errors.NewUnauthorizedError(fmt.Sprintf("role %s may not move %s to %s", principal.Role, from, to))
		}
		if rule.OwnerOnly && app.ApplicantID != principal.ID {
			return errors.NewUnauthorizedError("only the applicant may withdraw the application")
		}
		if err := s.checkGates(ctx, tx, app, to, rule.Gates); err != nil {
			return err
		}

		now := s.now().UTC()
		expected := app.Version
		app.Status = to
		app.UpdatedAt = now
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			app.Notes = notes
		}
		if to == models.StatusWithdrawn {
			reason := strings.TrimSpace(req.Reason)
			app.WithdrawnReason = &reason
		}
		if err := tx.UpdateApplication(ctx, app, expected); err != nil {
			return err
		}

		event := models.NewDomainEvent(models.EventStatusChanged, app.ID, principal, map[string]interface{}{
			"from":        string(from),
			"to":          string(to),
			"notes":       strings.TrimSpace(req.Notes),
			"version":     app.Version,
			"applicantId": app.ApplicantID,
			"vacancyId":   app.VacancyID,
		}, now)
		if err := tx.EnqueueEvent(ctx, event); err != nil {
			return err
		}
		result = app
		return nil
	})
	if err != nil {
		s.logger.Warn("Transition rejected", map[string]interface{}{
			"applicationId": req.ApplicationID,
			"to":            string(to),
			"principalId":   principal.ID,
			"code":          string(errors.CodeOf(err)),
		})
		return nil, err
	}

	metrics.PipelineTransitions.WithLabelValues(metricStatus(from), metricStatus(to)).Inc()
	s.logger.Info("Application transitioned", map[string]interface{}{
		"applicationId": result.ID,
		"from":          string(from),
		"to":            string(to),
		"version":       result.Version,
	})
	return result, nil
}

func (s *Service) checkGates(ctx context.Context, tx store.Tx, app *models.Application, to models.ApplicationStatus, gates []Gate) error {
	for _, gate := range gates {
		switch gate {
		case GateRoundCompleted:
			round, _ := app.Status.InterviewRound()
			interviews, err := tx.ListInterviews(ctx, app.ID)
			if err != nil {
				return err
			}
			if interview.RoundOutcome(interviews, round) != models.RoundCompleted {
				return errors.NewGateNotSatisfiedError(string(gate),
					fmt.Sprintf("interview round %d is not completed", round))
			}
		case GateEvaluation:
			evaluations, err := tx.ListEvaluations(ctx, app.ID)
			if err != nil {
				return err
			}
			if !evaluation.Aggregate(evaluations).Satisfied() {
				return errors.NewGateNotSatisfiedError(string(gate),
					"no positive evaluation without a later rejection")
			}
		case GateAssessment:
			if !s.config.RequireTestsBeforeInterview {
				continue
			}
			attempts, err := tx.ListAttempts(ctx, app.ID)
			if err != nil {
				return err
			}
			if signal := assessment.Signal(attempts); signal != models.AssessmentPass && signal != models.AssessmentNone {
				return errors.NewGateNotSatisfiedError(string(gate),
					fmt.Sprintf("assessment signal is %s", signal))
			}
		}
	}
	return nil
}

// GetApplication returns one application. Applicants only see their own.
func (s *Service) GetApplication(ctx context.Context, principal models.Principal, id string) (*models.Application, error) {
	var out *models.Application
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		app, err := tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if !principal.IsStaff() && app.ApplicantID != principal.ID {
			return errors.NewUnauthorizedError("application belongs to another applicant")
		}
		out = app
		return nil
	})
	return out, err
}

// ListApplications filters applications. Applicants are limited to their own.
func (s *Service) ListApplications(ctx context.Context, principal models.Principal, filter models.ApplicationFilter) ([]models.Application, error) {
	if principal.ID == "" {
		return nil, errors.NewUnauthorizedError("caller is not identified")
	}
	if !principal.IsStaff() {
		filter.ApplicantID = principal.ID
	}
	if filter.Status != "" {
		status, err := models.ParseApplicationStatus(string(filter.Status))
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
		filter.Status = status
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, errors.NewValidationError("limit and offset must not be negative")
	}
	if filter.Limit == 0 || filter.Limit > 200 {
		filter.Limit = 200
	}

	var out []models.Application
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListApplications(ctx, filter)
		return err
	})
	return out, err
}

// AllowedTransitions lists the statuses the caller may request next, ignoring gates.
func (s *Service) AllowedTransitions(ctx context.Context, principal models.Principal, id string) ([]models.ApplicationStatus, error) {
	app, err := s.GetApplication(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	out := make([]models.ApplicationStatus, 0)
	for _, to := range Targets(app.Status) {
		rule, _ := Lookup(app.Status, to)
		if !principal.HasRole(rule.Roles...) {
			continue
		}
		if rule.OwnerOnly && app.ApplicantID != principal.ID {
			continue
		}
		out = append(out, to)
	}
	return out, nil
}

func (s *Service) track(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, done := s.obs.StartOperation(ctx, "pipeline."+operation)
	return ctx, func(err error) {
		done(err)
		if err != nil {
			metrics.OperationRejections.WithLabelValues(operation, string(errors.CodeOf(err))).Inc()
		}
	}
}

// metricStatus keeps label cardinality bounded by folding interview rounds.
func metricStatus(s models.ApplicationStatus) string {
	if s.IsInterview() {
		return string(kindInterview)
	}
	return string(s)
}
