// Package memory is an in-process implementation of the store ports, used by
// service, worker and end-to-end tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/store"
)

type outboxEntry struct {
	event       models.DomainEvent
	status      models.OutboxStatus
	attempts    int
	lastError   string
	availableAt time.Time
	leasedUntil time.Time
	seq         int64
}

type state struct {
	applications map[string]models.Application
	evaluations  map[string][]models.Evaluation
	tests        map[string]models.Test
	attempts     map[string]models.TestAttempt // key: applicationID/testID
	interviews   map[string]models.Interview
	outbox       map[string]*outboxEntry
	seq          int64
}

func newState() *state {
	return &state{
		applications: map[string]models.Application{},
		evaluations:  map[string][]models.Evaluation{},
		tests:        map[string]models.Test{},
		attempts:     map[string]models.TestAttempt{},
		interviews:   map[string]models.Interview{},
		outbox:       map[string]*outboxEntry{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.applications {
		out.applications[k] = v.Clone()
	}
	for k, v := range s.evaluations {
		out.evaluations[k] = append([]models.Evaluation(nil), v...)
	}
	for k, v := range s.tests {
		out.tests[k] = v
	}
	for k, v := range s.attempts {
		out.attempts[k] = v
	}
	for k, v := range s.interviews {
		out.interviews[k] = v.Clone()
	}
	for k, v := range s.outbox {
		entry := *v
		out.outbox[k] = &entry
	}
	out.seq = s.seq
	return out
}

// Store serialises transactions with a single mutex and applies a transaction
// by swapping in its working copy on success.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock uses now for outbox lease and retry decisions.
func NewWithClock(now func() time.Time) *Store {
	return &Store{state: newState(), now: now}
}

var (
	_ store.Store            = (*Store)(nil)
	_ store.OutboxRepository = (*Store)(nil)
)

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&tx{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Events returns every event ever enqueued, oldest first.
func (s *Store) Events() []models.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]*outboxEntry, 0, len(s.state.outbox))
	for _, e := range s.state.outbox {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]models.DomainEvent, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.event)
	}
	return out
}

// OutboxStatus reports the delivery state of an event.
func (s *Store) OutboxStatus(eventID string) (models.OutboxStatus, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.outbox[eventID]
	if !ok {
		return "", 0, false
	}
	return e.status, e.attempts, true
}

func (s *Store) ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pending := make([]*outboxEntry, 0)
	for _, e := range s.state.outbox {
		if e.status == models.OutboxPending {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })

	blocked := make(map[string]bool)
	candidates := make([]*outboxEntry, 0)
	for _, e := range pending {
		app := e.event.ApplicationID
		if blocked[app] {
			continue
		}
		if e.availableAt.After(now) || e.leasedUntil.After(now) {
			blocked[app] = true
			continue
		}
		candidates = append(candidates, e)
		if limit > 0 && len(candidates) == limit {
			break
		}
	}

	out := make([]models.OutboxRecord, 0, len(candidates))
	for _, e := range candidates {
		e.leasedUntil = now.Add(lease)
		e.attempts++
		out = append(out, models.OutboxRecord{Event: e.event, Attempts: e.attempts})
	}
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.outbox[eventID]
	if !ok {
		return errors.NewNotFoundError("outbox event", eventID)
	}
	e.status = models.OutboxDelivered
	e.leasedUntil = time.Time{}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, eventID, lastError string, nextAttemptAt time.Time, dead bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.outbox[eventID]
	if !ok {
		return errors.NewNotFoundError("outbox event", eventID)
	}
	e.lastError = lastError
	e.availableAt = nextAttemptAt
	e.leasedUntil = time.Time{}
	if dead {
		e.status = models.OutboxDead
	}
	return nil
}

func (s *Store) Release(ctx context.Context, eventID string, availableAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.outbox[eventID]
	if !ok {
		return errors.NewNotFoundError("outbox event", eventID)
	}
	if e.attempts > 0 {
		e.attempts--
	}
	e.availableAt = availableAt
	e.leasedUntil = time.Time{}
	return nil
}

type tx struct {
	st *state
}

func attemptKey(applicationID, testID string) string {
	return applicationID + "/" + testID
}

func (t *tx) CreateApplication(ctx context.Context, app *models.Application) error {
	for _, existing := range t.st.applications {
		if existing.ApplicantID == app.ApplicantID && existing.VacancyID == app.VacancyID && existing.Status.IsActive() {
			return errors.NewDuplicateActionError("active application exists for applicant and vacancy")
		}
	}
	if _, ok := t.st.applications[app.ID]; ok {
		return errors.NewDuplicateActionError("application id exists: " + app.ID)
	}
	t.st.applications[app.ID] = app.Clone()
	return nil
}

func (t *tx) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	app, ok := t.st.applications[id]
	if !ok {
		return nil, errors.NewNotFoundError("application", id)
	}
	out := app.Clone()
	return &out, nil
}

func (t *tx) FindActiveApplication(ctx context.Context, applicantID, vacancyID string) (*models.Application, error) {
	for _, app := range t.st.applications {
		if app.ApplicantID == applicantID && app.VacancyID == vacancyID && app.Status.IsActive() {
			out := app.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

func (t *tx) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	out := make([]models.Application, 0)
	for _, app := range t.st.applications {
		if filter.VacancyID != "" && app.VacancyID != filter.VacancyID {
			continue
		}
		if filter.ApplicantID != "" && app.ApplicantID != filter.ApplicantID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, app.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.Application{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *tx) UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int64) error {
	stored, ok := t.st.applications[app.ID]
	if !ok {
		return errors.NewNotFoundError("application", app.ID)
	}
	if stored.Version != expectedVersion {
		return errors.NewConcurrentModificationError("application", app.ID)
	}
	stored.Status = app.Status
	stored.Notes = app.Notes
	stored.WithdrawnReason = app.WithdrawnReason
	stored.UpdatedAt = app.UpdatedAt
	stored.Version = expectedVersion + 1
	t.st.applications[app.ID] = stored.Clone()
	app.Version = stored.Version
	return nil
}

func (t *tx) TouchApplication(ctx context.Context, id string, expectedVersion int64, at time.Time) (int64, error) {
	stored, ok := t.st.applications[id]
	if !ok {
		return 0, errors.NewNotFoundError("application", id)
	}
	if stored.Version != expectedVersion {
		return 0, errors.NewConcurrentModificationError("application", id)
	}
	stored.Version++
	stored.UpdatedAt = at
	t.st.applications[id] = stored
	return stored.Version, nil
}

func (t *tx) InsertEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	if _, ok := t.st.applications[evaluation.ApplicationID]; !ok {
		return errors.NewNotFoundError("application", evaluation.ApplicationID)
	}
	t.st.evaluations[evaluation.ApplicationID] = append(t.st.evaluations[evaluation.ApplicationID], *evaluation)
	return nil
}

func (t *tx) ListEvaluations(ctx context.Context, applicationID string) ([]models.Evaluation, error) {
	out := append([]models.Evaluation(nil), t.st.evaluations[applicationID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) CreateTest(ctx context.Context, test *models.Test) error {
	if _, ok := t.st.tests[test.ID]; ok {
		return errors.NewDuplicateActionError("test id exists: " + test.ID)
	}
	t.st.tests[test.ID] = test.Clone()
	return nil
}

func (t *tx) GetTest(ctx context.Context, id string) (*models.Test, error) {
	test, ok := t.st.tests[id]
	if !ok {
		return nil, errors.NewNotFoundError("test", id)
	}
	out := test.Clone()
	return &out, nil
}

func (t *tx) CreateAttempt(ctx context.Context, attempt *models.TestAttempt) error {
	key := attemptKey(attempt.ApplicationID, attempt.TestID)
	if _, ok := t.st.attempts[key]; ok {
		return errors.NewDuplicateActionError("test attempt exists for application and test")
	}
	t.st.attempts[key] = *attempt
	return nil
}

func (t *tx) GetAttempt(ctx context.Context, applicationID, testID string) (*models.TestAttempt, error) {
	attempt, ok := t.st.attempts[attemptKey(applicationID, testID)]
	if !ok {
		return nil, errors.NewNotFoundError("test attempt", attemptKey(applicationID, testID))
	}
	return &attempt, nil
}

func (t *tx) ListAttempts(ctx context.Context, applicationID string) ([]models.TestAttempt, error) {
	out := make([]models.TestAttempt, 0)
	for _, a := range t.st.attempts {
		if a.ApplicationID == applicationID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.Before(out[j].InvitedAt) })
	return out, nil
}

func (t *tx) CompleteAttempt(ctx context.Context, attempt *models.TestAttempt) error {
	key := attemptKey(attempt.ApplicationID, attempt.TestID)
	stored, ok := t.st.attempts[key]
	if !ok {
		return errors.NewNotFoundError("test attempt", key)
	}
	if stored.Status == models.AttemptCompleted {
		return errors.NewDuplicateActionError("test attempt already completed")
	}
	t.st.attempts[key] = *attempt
	return nil
}

func (t *tx) CreateInterview(ctx context.Context, interview *models.Interview) error {
	for _, existing := range t.st.interviews {
		if existing.ApplicationID == interview.ApplicationID && existing.Round == interview.Round &&
			existing.Status != models.InterviewCancelled {
			return errors.NewDuplicateActionError("interview round already scheduled")
		}
	}
	t.st.interviews[interview.ID] = interview.Clone()
	return nil
}

func (t *tx) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	interview, ok := t.st.interviews[id]
	if !ok {
		return nil, errors.NewNotFoundError("interview", id)
	}
	out := interview.Clone()
	return &out, nil
}

func (t *tx) ListInterviews(ctx context.Context, applicationID string) ([]models.Interview, error) {
	out := make([]models.Interview, 0)
	for _, i := range t.st.interviews {
		if i.ApplicationID == applicationID {
			out = append(out, i.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Round == out[b].Round {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].Round < out[b].Round
	})
	return out, nil
}

func (t *tx) UpdateInterview(ctx context.Context, interview *models.Interview, expectedVersion int64) error {
	stored, ok := t.st.interviews[interview.ID]
	if !ok {
		return errors.NewNotFoundError("interview", interview.ID)
	}
	if stored.Version != expectedVersion {
		return errors.NewConcurrentModificationError("interview", interview.ID)
	}
	updated := interview.Clone()
	updated.Version = expectedVersion + 1
	t.st.interviews[interview.ID] = updated
	interview.Version = updated.Version
	return nil
}

func (t *tx) EnqueueEvent(ctx context.Context, event models.DomainEvent) error {
	t.st.seq++
	t.st.outbox[event.ID] = &outboxEntry{
		event:       event,
		status:      models.OutboxPending,
		availableAt: event.OccurredAt,
		seq:         t.st.seq,
	}
	return nil
}
