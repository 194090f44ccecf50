// Package assessment manages tests, invitations and graded attempts.
package assessment

import (
	"context"
	"fmt"
	"net/url"
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

// TestDefinition is the input of CreateTest.
type TestDefinition struct {
	VacancyID    string            `json:"vacancyId"`
	Title        string            `json:"title"`
	Kind         models.TestKind   `json:"kind"`
	ExternalURL  string            `json:"externalUrl,omitempty"`
	PassingScore float64           `json:"passingScore"`
	Questions    []models.Question `json:"questions,omitempty"`
}

var managerRoles = []models.Role{models.RoleRecruiter, models.RoleAdmin}

type Service struct {
	store  store.Store
	locker lock.Locker
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option { return func(s *Service) { s.locker = l } }

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) { s.obs = o }
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		locker: lock.Noop{},
		logger: log.WithFields(map[string]interface{}{"component": "assessment"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateTest(ctx context.Context, principal models.Principal, def TestDefinition) (result *models.Test, err error) {
	ctx, done := s.track(ctx, "create_test")
	defer func() { done(err) }()

	if !principal.HasRole(managerRoles...) {
		return nil, errors.NewUnauthorizedError("only recruiters and admins create tests")
	}
	def.Questions = assignQuestionIDs(def.Questions)
	if err := validateDefinition(&def); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	test := &models.Test{
		ID:           uuid.New().String(),
		VacancyID:    def.VacancyID,
		Title:        strings.TrimSpace(def.Title),
		Kind:         def.Kind,
		ExternalURL:  def.ExternalURL,
		PassingScore: def.PassingScore,
		Questions:    def.Questions,
		CreatedBy:    principal.ID,
		CreatedAt:    now,
	}

	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.CreateTest(ctx, test)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Test created", map[string]interface{}{
		"testId":    test.ID,
		"vacancyId": test.VacancyID,
		"kind":      string(test.Kind),
	})
	return test, nil
}

// GetTest returns the full test including answer keys. Staff only.
func (s *Service) GetTest(ctx context.Context, principal models.Principal, testID string) (*models.Test, error) {
	if !principal.IsStaff() {
		return nil, errors.NewUnauthorizedError("answer keys are staff only")
	}
	var out *models.Test
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.GetTest(ctx, testID)
		return err
	})
	return out, err
}

// GetPublicTest returns the applicant-facing view of a test.
func (s *Service) GetPublicTest(ctx context.Context, principal models.Principal, testID string) (*models.PublicTest, error) {
	if principal.ID == "" {
		return nil, errors.NewUnauthorizedError("caller is not identified")
	}
	var out models.PublicTest
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		test, err := tx.GetTest(ctx, testID)
		if err != nil {
			return err
		}
		out = test.Public()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InviteToTest creates the single attempt of an application for a test.
func (s *Service) InviteToTest(ctx context.Context, principal models.Principal, applicationID, testID string) (result *models.TestAttempt, err error) {
	ctx, done := s.track(ctx, "invite_to_test")
	defer func() { done(err) }()

	if !principal.HasRole(managerRoles...) {
		return nil, errors.NewUnauthorizedError("only recruiters and admins invite to tests")
	}

	err = s.withApplication(ctx, applicationID, func(tx store.Tx, app *models.Application, now time.Time) error {
		test, err := tx.GetTest(ctx, testID)
		if err != nil {
			return err
		}
		if test.VacancyID != app.VacancyID {
			return errors.NewValidationError("test belongs to another vacancy")
		}

		attempt := &models.TestAttempt{
			ID:            uuid.New().String(),
			ApplicationID: app.ID,
			TestID:        test.ID,
			Status:        models.AttemptInvited,
			TotalScore:    test.TotalPoints(),
			InvitedAt:     now,
		}
		if err := tx.CreateAttempt(ctx, attempt); err != nil {
			return err
		}
		result = attempt
		return s.touchAndEmit(ctx, tx, app, principal, now, models.EventTestInvited, map[string]interface{}{
			"testId":      test.ID,
			"testTitle":   test.Title,
			"externalUrl": test.ExternalURL,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitAttempt grades the answers of an invited applicant to an internal quiz.
func (s *Service) SubmitAttempt(ctx context.Context, principal models.Principal, applicationID, testID string, answers []models.Answer) (result *models.TestAttempt, err error) {
	ctx, done := s.track(ctx, "submit_attempt")
	defer func() { done(err) }()

	if principal.Role != models.RoleApplicant {
		return nil, errors.NewUnauthorizedError("only the applicant submits attempts")
	}

	err = s.withApplication(ctx, applicationID, func(tx store.Tx, app *models.Application, now time.Time) error {
		if app.ApplicantID != principal.ID {
			return errors.NewUnauthorizedError("application belongs to another applicant")
		}
		attempt, err := tx.GetAttempt(ctx, applicationID, testID)
		if err != nil {
			return err
		}
		if attempt.Status == models.AttemptCompleted {
			return errors.NewDuplicateActionError("test attempt already completed")
		}
		test, err := tx.GetTest(ctx, testID)
		if err != nil {
			return err
		}
		if test.Kind != models.TestKindInternalQuiz {
			return errors.NewValidationError("external tests are completed by staff")
		}

		graded, err := Grade(*test, answers)
		if err != nil {
			return err
		}
		attempt.Status = models.AttemptCompleted
		attempt.Answers = answers
		attempt.Score = graded.Score
		attempt.TotalScore = graded.TotalScore
		attempt.Percentage = graded.Percentage
		attempt.IsPassed = graded.IsPassed
		attempt.CompletedAt = &now
		if err := tx.CompleteAttempt(ctx, attempt); err != nil {
			return err
		}
		result = attempt
		return s.touchAndEmit(ctx, tx, app, principal, now, models.EventTestCompleted, map[string]interface{}{
			"testId":     test.ID,
			"score":      graded.Score,
			"totalScore": graded.TotalScore,
			"percentage": graded.Percentage,
			"isPassed":   graded.IsPassed,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Test attempt graded", map[string]interface{}{
		"applicationId": applicationID,
		"testId":        testID,
		"percentage":    result.Percentage,
		"isPassed":      result.IsPassed,
	})
	return result, nil
}

// MarkComplete closes the attempt of an external test. It counts as passed.
func (s *Service) MarkComplete(ctx context.Context, principal models.Principal, applicationID, testID, notes string) (result *models.TestAttempt, err error) {
	ctx, done := s.track(ctx, "mark_test_complete")
	defer func() { done(err) }()

	if !principal.HasRole(managerRoles...) {
		return nil, errors.NewUnauthorizedError("only recruiters and admins complete external tests")
	}

	err = s.withApplication(ctx, applicationID, func(tx store.Tx, app *models.Application, now time.Time) error {
		attempt, err := tx.GetAttempt(ctx, applicationID, testID)
		if err != nil {
			return err
		}
		if attempt.Status == models.AttemptCompleted {
			return errors.NewDuplicateActionError("test attempt already completed")
		}
		test, err := tx.GetTest(ctx, testID)
		if err != nil {
			return err
		}
		if test.Kind != models.TestKindExternalLink {
			return errors.NewValidationError("internal quizzes are graded from answers")
		}

		attempt.Status = models.AttemptCompleted
		attempt.Notes = strings.TrimSpace(notes)
		attempt.Percentage = 100
		attempt.IsPassed = true
		attempt.CompletedAt = &now
		if err := tx.CompleteAttempt(ctx, attempt); err != nil {
			return err
		}
		result = attempt
		return s.touchAndEmit(ctx, tx, app, principal, now, models.EventTestCompleted, map[string]interface{}{
			"testId":   test.ID,
			"isPassed": true,
			"external": true,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Attempts lists the attempts of an application. Applicants see their own.
func (s *Service) Attempts(ctx context.Context, principal models.Principal, applicationID string) ([]models.TestAttempt, error) {
	var out []models.TestAttempt
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		app, err := tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if !principal.IsStaff() && app.ApplicantID != principal.ID {
			return errors.NewUnauthorizedError("application belongs to another applicant")
		}
		out, err = tx.ListAttempts(ctx, applicationID)
		return err
	})
	return out, err
}

// Signal returns the assessment signal of an application.
func (s *Service) Signal(ctx context.Context, principal models.Principal, applicationID string) (models.AssessmentSignal, error) {
	attempts, err := s.Attempts(ctx, principal, applicationID)
	if err != nil {
		return "", err
	}
	return Signal(attempts), nil
}

// Signal summarises attempts: NONE without attempts, FAIL if any completed
// attempt failed, PENDING while any is still open, PASS otherwise.
func Signal(attempts []models.TestAttempt) models.AssessmentSignal {
	if len(attempts) == 0 {
		return models.AssessmentNone
	}
	pending := false
	for _, a := range attempts {
		if a.Status == models.AttemptCompleted && !a.IsPassed {
			return models.AssessmentFail
		}
		if a.Status != models.AttemptCompleted {
			pending = true
		}
	}
	if pending {
		return models.AssessmentPending
	}
	return models.AssessmentPass
}

func (s *Service) withApplication(ctx context.Context, applicationID string, fn func(tx store.Tx, app *models.Application, now time.Time) error) error {
	release, err := s.locker.Lock(ctx, lock.ApplicationKey(applicationID))
	if err != nil {
		return err
	}
	defer release()

	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		app, err := tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status.IsTerminal() {
			return errors.NewValidationErrorf("application is closed with status %s", app.Status)
		}
		return fn(tx, app, s.now().UTC())
	})
}

func (s *Service) touchAndEmit(ctx context.Context, tx store.Tx, app *models.Application, actor models.Principal, now time.Time, t models.EventType, payload map[string]interface{}) error {
	if _, err := tx.TouchApplication(ctx, app.ID, app.Version, now); err != nil {
		return err
	}
	payload["applicantId"] = app.ApplicantID
	payload["status"] = string(app.Status)
	return tx.EnqueueEvent(ctx, models.NewDomainEvent(t, app.ID, actor, payload, now))
}

func (s *Service) track(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, done := s.obs.StartOperation(ctx, "assessment."+operation)
	return ctx, func(err error) {
		done(err)
		if err != nil {
			metrics.OperationRejections.WithLabelValues(operation, string(errors.CodeOf(err))).Inc()
		}
	}
}

// assignQuestionIDs copies questions and names every unnamed question
// q{position}, or the next free q{n} when that id is taken.
func assignQuestionIDs(questions []models.Question) []models.Question {
	if questions == nil {
		return nil
	}
	out := models.Test{Questions: questions}.Clone().Questions
	used := make(map[string]bool, len(out))
	for _, q := range out {
		if q.ID != "" {
			used[q.ID] = true
		}
	}
	for idx := range out {
		if out[idx].ID != "" {
			continue
		}
		for n := idx + 1; ; n++ {
			id := fmt.Sprintf("q%d", n)
			if !used[id] {
				out[idx].ID = id
				used[id] = true
				break
			}
		}
	}
	return out
}

func validateDefinition(def *TestDefinition) error {
	if strings.TrimSpace(def.VacancyID) == "" {
		return errors.NewValidationError("vacancyId is required")
	}
	if strings.TrimSpace(def.Title) == "" {
		return errors.NewValidationError("title is required")
	}
	if def.PassingScore < 0 || def.PassingScore > 100 {
		return errors.NewValidationError("passingScore must be between 0 and 100")
	}

	switch def.Kind {
	case models.TestKindExternalLink:
		u, err := url.Parse(def.ExternalURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.NewValidationError("externalUrl must be an absolute http(s) URL")
		}
		if len(def.Questions) > 0 {
			return errors.NewValidationError("external tests carry no questions")
		}
	case models.TestKindInternalQuiz:
		if len(def.Questions) == 0 {
			return errors.NewValidationError("internal quizzes need at least one question")
		}
		ids := make(map[string]bool, len(def.Questions))
		for idx, q := range def.Questions {
			if ids[q.ID] {
				return errors.NewValidationErrorf("question id %s is used twice", q.ID)
			}
			ids[q.ID] = true
			if err := validateQuestion(q); err != nil {
				return errors.NewValidationErrorf("question %d: %s", idx+1, errors.AsStandard(err).Details)
			}
		}
	default:
		return errors.NewValidationErrorf("unknown test kind %q", def.Kind)
	}
	return nil
}

func validateQuestion(q models.Question) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.NewValidationError("prompt is required")
	}
	if q.Points <= 0 {
		return errors.NewValidationError("points must be positive")
	}
	switch q.Type {
	case models.QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return errors.NewValidationError("multiple choice needs at least two options")
		}
		if len(q.CorrectOptions) == 0 {
			return errors.NewValidationError("multiple choice needs a correct option")
		}
		options := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			options[o] = true
		}
		for _, c := range q.CorrectOptions {
			if !options[c] {
				return errors.NewValidationErrorf("correct option %q is not an option", c)
			}
		}
	case models.QuestionTrueFalse:
		if q.CorrectBool == nil {
			return errors.NewValidationError("true/false needs a correct answer")
		}
	case models.QuestionShortAnswer:
		if normalize(q.CorrectText) == "" {
			return errors.NewValidationError("short answer needs a correct text")
		}
	default:
		return errors.NewValidationErrorf("unknown question type %q", q.Type)
	}
	return nil
}
