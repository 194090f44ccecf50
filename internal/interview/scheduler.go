// Package interview schedules interview rounds and records their outcome.
package interview

import (
	"context"
	"strings"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/lock"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/common/observability"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/store"

	"github.com/google/uuid"
)

// ScheduleInput describes a new interview round.
type ScheduleInput struct {
	ApplicationID   string    `json:"applicationId"`
	Round           int       `json:"round"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"durationMinutes"`
	InterviewerIDs  []string  `json:"interviewerIds"`
}

var schedulerRoles = []models.Role{models.RoleRecruiter, models.RoleAdmin}

type Scheduler struct {
	store     store.Store
	locker    lock.Locker
	obs       *observability.Observability
	minRating int
	maxRating int
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*Scheduler)

func WithLocker(l lock.Locker) Option { return func(s *Scheduler) { s.locker = l } }

func WithObservability(o *observability.Observability) Option {
	return func(s *Scheduler) { s.obs = o }
}

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// WithRatingBounds sets the accepted verdict rating range (default 1..10).
func WithRatingBounds(min, max int) Option {
	return func(s *Scheduler) { s.minRating, s.maxRating = min, max }
}

func NewScheduler(st store.Store, log logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     st,
		locker:    lock.Noop{},
		minRating: 1,
		maxRating: 10,
		logger:    log.WithFields(map[string]interface{}{"component": "interview-scheduler"}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule creates the next interview round of an application, or a lower
// round whose interview was cancelled.
func (s *Scheduler) Schedule(ctx context.Context, principal models.Principal, in ScheduleInput) (result *models.Interview, err error) {
	ctx, done := s.track(ctx, "schedule_interview")
	defer func() { done(err) }()

	if !principal.HasRole(schedulerRoles...) {
		return nil, errors.NewUnauthorizedError("only recruiters and admins schedule interviews")
	}
	interviewerIDs, err := validateSchedule(in)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, lock.ApplicationKey(in.ApplicationID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		app, err := tx.GetApplication(ctx, in.ApplicationID)
		if err != nil {
			return err
		}
		if app.Status.IsTerminal() {
			return errors.NewValidationErrorf("application is closed with status %s", app.Status)
		}

		existing, err := tx.ListInterviews(ctx, in.ApplicationID)
		if err != nil {
			return err
		}
		if RoundOutcome(existing, in.Round) != models.RoundNone {
			return errors.NewDuplicateActionError("interview round is already scheduled")
		}
		// Rounds below the next one are free only when their interview was cancelled.
		if next := NextRound(existing); in.Round > next {
			return errors.NewValidationErrorf("round must be at most %d", next)
		}

		now := s.now().UTC()
		interview := &models.Interview{
			ID:              uuid.New().String(),
			ApplicationID:   in.ApplicationID,
			Round:           in.Round,
			ScheduledAt:     in.ScheduledAt.UTC(),
			DurationMinutes: in.DurationMinutes,
			Status:          models.InterviewScheduled,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for _, id := range interviewerIDs {
			interview.Assignments = append(interview.Assignments, models.InterviewerAssignment{
				InterviewID:   interview.ID,
				InterviewerID: id,
			})
		}
		if err := tx.CreateInterview(ctx, interview); err != nil {
			return err
		}
		if _, err := tx.TouchApplication(ctx, app.ID, app.Version, now); err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, s.event(models.EventInterviewScheduled, app, interview, principal, now, nil)); err != nil {
			return err
		}
		result = interview
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Interview scheduled", map[string]interface{}{
		"applicationId": result.ApplicationID,
		"interviewId":   result.ID,
		"round":         result.Round,
	})
	return result, nil
}

// Reschedule moves a SCHEDULED or RESCHEDULED interview.
func (s *Scheduler) Reschedule(ctx context.Context, principal models.Principal, interviewID string, at time.Time, reason string) (result *models.Interview, err error) {
	ctx, done := s.track(ctx, "reschedule_interview")
	defer func() { done(err) }()

	if !principal.HasRole(schedulerRoles...) {
		return nil, errors.NewUnauthorizedError("only recruiters and admins reschedule interviews")
	}
	if at.IsZero() {
		return nil, errors.NewValidationError("scheduledAt is required")
	}

	return s.mutate(ctx, principal, interviewID, models.EventInterviewRescheduled,
		func(i *models.Interview, now time.Time) error {
			if i.Status != models.InterviewScheduled && i.Status != models.InterviewRescheduled {
				return errors.NewIllegalTransitionError(string(i.Status), string(models.InterviewRescheduled))
			}
			i.ScheduledAt = at.UTC()
			i.RescheduleReason = strings.TrimSpace(reason)
			i.Status = models.InterviewRescheduled
			return nil
		})
}

// Cancel ends an interview that has not been completed. Its round becomes
// free for a new interview only if no later round exists.
func (s *Scheduler) Cancel(ctx context.Context, principal models.Principal, interviewID, reason string) (result *models.Interview, err error) {
	ctx, done := s.track(ctx, "cancel_interview")
	defer func() { done(err) }()

	if !principal.HasRole(schedulerRoles...) {
		return nil, errors.NewUnauthorizedError("only recruiters and admins cancel interviews")
	}

	return s.mutate(ctx, principal, interviewID, models.EventInterviewCancelled,
		func(i *models.Interview, now time.Time) error {
			if i.Status.IsTerminal() {
				return errors.NewIllegalTransitionError(string(i.Status), string(models.InterviewCancelled))
			}
			i.Status = models.InterviewCancelled
			i.CancelReason = strings.TrimSpace(reason)
			return nil
		})
}

// Complete records the verdicts of the assigned interviewers. At least one
// verdict must mark the interviewer as attended.
func (s *Scheduler) Complete(ctx context.Context, principal models.Principal, interviewID string, verdicts []models.Verdict) (result *models.Interview, err error) {
	ctx, done := s.track(ctx, "complete_interview")
	defer func() { done(err) }()

	if !principal.HasRole(schedulerRoles...) {
		return nil, errors.NewUnauthorizedError("only recruiters and admins complete interviews")
	}

	return s.mutate(ctx, principal, interviewID, models.EventInterviewCompleted,
		func(i *models.Interview, now time.Time) error {
			switch i.Status {
			case models.InterviewCompleted:
				return errors.NewDuplicateActionError("interview is already completed")
			case models.InterviewCancelled:
				return errors.NewIllegalTransitionError(string(i.Status), string(models.InterviewCompleted))
			}
			if err := s.applyVerdicts(i, verdicts); err != nil {
				return err
			}
			i.Status = models.InterviewCompleted
			i.CompletedAt = &now
			return nil
		})
}

// Get returns one interview. Applicants only see their own, without verdicts.
func (s *Scheduler) Get(ctx context.Context, principal models.Principal, interviewID string) (*models.Interview, error) {
	var out *models.Interview
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		i, err := tx.GetInterview(ctx, interviewID)
		if err != nil {
			return err
		}
		app, err := tx.GetApplication(ctx, i.ApplicationID)
		if err != nil {
			return err
		}
		if !canRead(principal, app) {
			return errors.NewUnauthorizedError("interview belongs to another applicant")
		}
		out = i
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !principal.IsStaff() {
		redact(out)
	}
	return out, nil
}

// List returns the interviews of an application ordered by round.
func (s *Scheduler) List(ctx context.Context, principal models.Principal, applicationID string) ([]models.Interview, error) {
	var out []models.Interview
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		app, err := tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if !canRead(principal, app) {
			return errors.NewUnauthorizedError("application belongs to another applicant")
		}
		out, err = tx.ListInterviews(ctx, applicationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !principal.IsStaff() {
		for idx := range out {
			redact(&out[idx])
		}
	}
	return out, nil
}

// RoundOutcome reports the gate state of round for an application.
func (s *Scheduler) RoundOutcome(ctx context.Context, applicationID string, round int) (models.RoundOutcome, error) {
	interviews, err := s.interviews(ctx, applicationID)
	if err != nil {
		return "", err
	}
	return RoundOutcome(interviews, round), nil
}

// IsAssigned reports whether interviewerID sits on a non-cancelled interview
// of the application.
func (s *Scheduler) IsAssigned(ctx context.Context, applicationID, interviewerID string) (bool, error) {
	interviews, err := s.interviews(ctx, applicationID)
	if err != nil {
		return false, err
	}
	return HasActiveAssignment(interviews, interviewerID), nil
}

func (s *Scheduler) interviews(ctx context.Context, applicationID string) ([]models.Interview, error) {
	var out []models.Interview
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetApplication(ctx, applicationID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListInterviews(ctx, applicationID)
		return err
	})
	return out, err
}

func (s *Scheduler) mutate(
	ctx context.Context,
	principal models.Principal,
	interviewID string,
	eventType models.EventType,
	apply func(i *models.Interview, now time.Time) error,
) (*models.Interview, error) {
	var applicationID string
	if err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		i, err := tx.GetInterview(ctx, interviewID)
		if err != nil {
			return err
		}
		applicationID = i.ApplicationID
		return nil
	}); err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, lock.ApplicationKey(applicationID))
	if err != nil {
		return nil, err
	}
	defer release()

	var result *models.Interview
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		i, err := tx.GetInterview(ctx, interviewID)
		if err != nil {
			return err
		}
		app, err := tx.GetApplication(ctx, i.ApplicationID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		expected := i.Version
		if err := apply(i, now); err != nil {
			return err
		}
		i.UpdatedAt = now
		if err := tx.UpdateInterview(ctx, i, expected); err != nil {
			return err
		}
		if _, err := tx.TouchApplication(ctx, app.ID, app.Version, now); err != nil {
			return err
		}

		var extra map[string]interface{}
		switch eventType {
		case models.EventInterviewRescheduled:
			extra = map[string]interface{}{"reason": i.RescheduleReason}
		case models.EventInterviewCancelled:
			extra = map[string]interface{}{"reason": i.CancelReason}
		case models.EventInterviewCompleted:
			extra = map[string]interface{}{"attended": attendedIDs(i)}
		}
		if err := tx.EnqueueEvent(ctx, s.event(eventType, app, i, principal, now, extra)); err != nil {
			return err
		}
		result = i
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Interview updated", map[string]interface{}{
		"interviewId": result.ID,
		"status":      string(result.Status),
		"event":       string(eventType),
	})
	return result, nil
}

func (s *Scheduler) applyVerdicts(i *models.Interview, verdicts []models.Verdict) error {
	seen := make(map[string]bool, len(verdicts))
	attended := false
	normalized := make([]models.Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		if !i.HasInterviewer(v.InterviewerID) {
			return errors.NewNotAssignedError(v.InterviewerID, i.ApplicationID)
		}
		if seen[v.InterviewerID] {
			return errors.NewValidationErrorf("duplicate verdict for interviewer %s", v.InterviewerID)
		}
		seen[v.InterviewerID] = true
		if v.Rating != nil && (*v.Rating < s.minRating || *v.Rating > s.maxRating) {
			return errors.NewValidationErrorf("rating must be between %d and %d", s.minRating, s.maxRating)
		}
		if v.Recommendation != nil {
			rec, err := models.ParseRecommendation(string(*v.Recommendation))
			if err != nil {
				return errors.NewValidationError(err.Error())
			}
			v.Recommendation = &rec
		}
		attended = attended || v.Attended
		normalized = append(normalized, v)
	}
	if !attended {
		return errors.NewValidationError("at least one interviewer must have attended")
	}

	for idx := range i.Assignments {
		a := &i.Assignments[idx]
		for _, v := range normalized {
			if v.InterviewerID == a.InterviewerID {
				a.Attended = v.Attended
				a.Rating = v.Rating
				a.Recommendation = v.Recommendation
			}
		}
	}
	return nil
}

func (s *Scheduler) event(t models.EventType, app *models.Application, i *models.Interview, actor models.Principal, now time.Time, extra map[string]interface{}) models.DomainEvent {
	payload := map[string]interface{}{
		"interviewId":    i.ID,
		"round":          i.Round,
		"scheduledAt":    i.ScheduledAt.Format(time.RFC3339),
		"interviewerIds": i.InterviewerIDs(),
		"applicantId":    app.ApplicantID,
		"status":         string(app.Status),
	}
	for k, v := range extra {
		payload[k] = v
	}
	return models.NewDomainEvent(t, app.ID, actor, payload, now)
}

func (s *Scheduler) track(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, done := s.obs.StartOperation(ctx, "interview."+operation)
	return ctx, func(err error) {
		done(err)
		if err != nil {
			metrics.OperationRejections.WithLabelValues(operation, string(errors.CodeOf(err))).Inc()
		}
	}
}

func validateSchedule(in ScheduleInput) ([]string, error) {
	if in.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required")
	}
	if in.Round < 1 {
		return nil, errors.NewValidationError("round must be at least 1")
	}
	if in.ScheduledAt.IsZero() {
		return nil, errors.NewValidationError("scheduledAt is required")
	}
	if in.DurationMinutes <= 0 {
		return nil, errors.NewValidationError("durationMinutes must be positive")
	}
	if len(in.InterviewerIDs) == 0 {
		return nil, errors.NewValidationError("at least one interviewer is required")
	}
	ids := make([]string, 0, len(in.InterviewerIDs))
	seen := make(map[string]bool, len(in.InterviewerIDs))
	for _, raw := range in.InterviewerIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, errors.NewValidationError("interviewer ids must not be empty")
		}
		if seen[id] {
			return nil, errors.NewValidationErrorf("interviewer %s is listed twice", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func canRead(principal models.Principal, app *models.Application) bool {
	if principal.IsStaff() {
		return true
	}
	return principal.Role == models.RoleApplicant && app.ApplicantID == principal.ID
}

func redact(i *models.Interview) {
	for idx := range i.Assignments {
		i.Assignments[idx].Rating = nil
		i.Assignments[idx].Recommendation = nil
	}
}

func attendedIDs(i *models.Interview) []string {
	out := make([]string, 0, len(i.Assignments))
	for _, a := range i.Assignments {
		if a.Attended {
			out = append(out, a.InterviewerID)
		}
	}
	return out
}
