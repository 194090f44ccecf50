// Package evaluation records staff evaluations of applications and derives
// the evaluation signal consulted by the offer gate.
package evaluation

import (
	"context"
	"strings"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/lock"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/common/observability"
	"hiring-pipeline/internal/interview"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/store"

	"github.com/google/uuid"
)

type Config struct {
	MinRating int
	MaxRating int
}

func DefaultConfig() Config {
	return Config{MinRating: 1, MaxRating: 10}
}

// Input is the body of an evaluation submission.
type Input struct {
	Rating         int    `json:"rating"`
	Comments       string `json:"comments,omitempty"`
	Strengths      string `json:"strengths,omitempty"`
	Weaknesses     string `json:"weaknesses,omitempty"`
	Recommendation string `json:"recommendation"`
}

var evaluatorRoles = []models.Role{
	models.RoleRecruiter, models.RoleInterviewer, models.RoleManager, models.RoleAdmin,
}

// Ledger is the append-only evaluation store of the pipeline.
type Ledger struct {
	store  store.Store
	locker lock.Locker
	obs    *observability.Observability
	config Config
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Ledger)

func WithLocker(l lock.Locker) Option { return func(x *Ledger) { x.locker = l } }

func WithObservability(o *observability.Observability) Option {
	return func(x *Ledger) { x.obs = o }
}

func WithClock(now func() time.Time) Option { return func(x *Ledger) { x.now = now } }

func NewLedger(st store.Store, config Config, log logger.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  st,
		locker: lock.Noop{},
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "evaluation-ledger"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SubmitEvaluation appends an evaluation. Interviewers may only evaluate applications
// they are assigned to through a non-cancelled interview.
func (l *Ledger) SubmitEvaluation(ctx context.Context, principal models.Principal, applicationID string, in Input) (result *models.Evaluation, err error) {
	ctx, done := l.obs.StartOperation(ctx, "evaluation.SubmitEvaluation")
	defer func() {
		done(err)
		if err != nil {
			metrics.OperationRejections.WithLabelValues("submit_evaluation", string(errors.CodeOf(err))).Inc()
		}
	}()

	if principal.ID == "" || !principal.HasRole(evaluatorRoles...) {
		return nil, errors.NewUnauthorizedError("role may not submit evaluations")
	}
	recommendation, err := l.validate(in)
	if err != nil {
		return nil, err
	}

	release, err := l.locker.Lock(ctx, lock.ApplicationKey(applicationID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = l.store.WithinTx(ctx, func(tx store.Tx) error {
		app, err := tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status.IsTerminal() {
			return errors.NewValidationErrorf("application is closed with status %s", app.Status)
		}

		if principal.Role == models.RoleInterviewer {
			interviews, err := tx.ListInterviews(ctx, applicationID)
			if err != nil {
				return err
			}
			if !interview.HasActiveAssignment(interviews, principal.ID) {
				return errors.NewNotAssignedError(principal.ID, applicationID)
			}
		}

		now := l.now().UTC()
		evaluation := &models.Evaluation{
			ID:             uuid.New().String(),
			ApplicationID:  applicationID,
			EvaluatorID:    principal.ID,
			EvaluatorRole:  principal.Role,
			Rating:         in.Rating,
			Comments:       strings.TrimSpace(in.Comments),
			Strengths:      strings.TrimSpace(in.Strengths),
			Weaknesses:     strings.TrimSpace(in.Weaknesses),
			Recommendation: recommendation,
			CreatedAt:      now,
		}
		if err := tx.InsertEvaluation(ctx, evaluation); err != nil {
			return err
		}
		if _, err := tx.TouchApplication(ctx, applicationID, app.Version, now); err != nil {
			return err
		}

		event := models.NewDomainEvent(models.EventEvaluationSubmitted, applicationID, principal, map[string]interface{}{
			"evaluationId":   evaluation.ID,
			"evaluatorId":    evaluation.EvaluatorID,
			"rating":         evaluation.Rating,
			"recommendation": string(evaluation.Recommendation),
			"status":         string(app.Status),
			"applicantId":    app.ApplicantID,
		}, now)
		if err := tx.EnqueueEvent(ctx, event); err != nil {
			return err
		}

		result = evaluation
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Evaluation submitted", map[string]interface{}{
		"applicationId":  applicationID,
		"evaluationId":   result.ID,
		"evaluatorId":    principal.ID,
		"recommendation": string(result.Recommendation),
	})
	return result, nil
}

// List returns the ledger of an application. Applicants never see evaluations.
func (l *Ledger) List(ctx context.Context, principal models.Principal, applicationID string) ([]models.Evaluation, error) {
	if !principal.IsStaff() {
		return nil, errors.NewUnauthorizedError("applicants may not read evaluations")
	}
	var out []models.Evaluation
	err := l.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetApplication(ctx, applicationID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListEvaluations(ctx, applicationID)
		return err
	})
	return out, err
}

// Signal returns the aggregated evaluation signal of an application.
func (l *Ledger) Signal(ctx context.Context, principal models.Principal, applicationID string) (Signal, error) {
	evaluations, err := l.List(ctx, principal, applicationID)
	if err != nil {
		return Signal{}, err
	}
	return Aggregate(evaluations), nil
}

func (l *Ledger) validate(in Input) (models.Recommendation, error) {
	if in.Rating < l.config.MinRating || in.Rating > l.config.MaxRating {
		return "", errors.NewValidationErrorf("rating must be between %d and %d", l.config.MinRating, l.config.MaxRating)
	}
	recommendation, err := models.ParseRecommendation(in.Recommendation)
	if err != nil {
		return "", errors.NewValidationError(err.Error())
	}
	return recommendation, nil
}
