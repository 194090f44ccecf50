package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hiring-pipeline/internal/assessment"
	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/evaluation"
	"hiring-pipeline/internal/interview"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/sinks/audit"
	"hiring-pipeline/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenAuthenticator map[string]models.Principal

func (a tokenAuthenticator) Authenticate(_ context.Context, token string) (models.Principal, error) {
	p, ok := a[token]
	if !ok {
		return models.Principal{}, errors.NewAuthenticationError("token is not active")
	}
	return p, nil
}

type fakeHistory struct {
	entries []audit.Entry
}

func (f *fakeHistory) History(_ context.Context, applicationID string) ([]audit.Entry, error) {
	var out []audit.Entry
	for _, e := range f.entries {
		if e.ApplicationID == applicationID {
			out = append(out, e)
		}
	}
	return out, nil
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	history *fakeHistory
}

func newTestServer(t *testing.T, checks ...Check) *testServer {
	t.Helper()
	st := memory.New()
	log := logger.NewTestLogger(t)
	history := &fakeHistory{}

	return &testServer{
		t:       t,
		history: history,
		handler: NewRouter(Dependencies{
			Pipeline:    pipeline.NewService(st, pipeline.Config{}, log),
			Ledger:      evaluation.NewLedger(st, evaluation.DefaultConfig(), log),
			Assessments: assessment.NewService(st, log),
			Scheduler:   interview.NewScheduler(st, log),
			Audit:       history,
			Authenticator: tokenAuthenticator{
				"applicant":   {ID: "applicant-1", Role: models.RoleApplicant},
				"applicant-2": {ID: "applicant-2", Role: models.RoleApplicant},
				"recruiter":   {ID: "recruiter-1", Role: models.RoleRecruiter},
			},
			ReadyChecks: checks,
			Logger:      log,
		}),
	}
}

func (s *testServer) do(method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var body ErrorBody
	decodeBody(t, rec, &body)
	return body.Code
}

func (s *testServer) submit() models.Application {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/applications", "applicant", map[string]string{
		"vacancyId": "vac-1",
		"cvId":      "cv-1",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var app models.Application
	decodeBody(s.t, rec, &app)
	return app
}

func TestHealthAndReady(t *testing.T) {
	healthy := newTestServer(t, Check{Name: "postgres", Ping: func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/ready", "", nil).Code)

	down := newTestServer(t, Check{Name: "redis", Ping: func(context.Context) error { return stderrors.New("connection refused") }})
	rec := down.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/applications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.ErrCodeAuthentication, errorCode(t, rec))

	rec = s.do(http.MethodGet, "/api/v1/applications", "", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/applications", "revoked", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitApplication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/applications", "applicant", map[string]string{"vacancyId": "vac-1", "cvId": "cv-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))

	var app models.Application
	decodeBody(t, rec, &app)
	assert.Equal(t, models.StatusApplied, app.Status)
	assert.Equal(t, "applicant-1", app.ApplicantID)

	rec = s.do(http.MethodPost, "/api/v1/applications", "applicant", map[string]string{"vacancyId": "vac-1", "cvId": "cv-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.ErrCodeDuplicateAction, errorCode(t, rec))
}

func TestSubmitApplication_SchemaViolation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/applications", "applicant", map[string]string{"vacancyId": "vac-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, errors.ErrCodeValidation, body.Code)
	assert.Contains(t, body.Details, "cvId")
}

func TestRequestTransition_IfMatch(t *testing.T) {
	s := newTestServer(t)
	app := s.submit()
	path := "/api/v1/applications/" + app.ID + "/transitions"

	rec := s.do(http.MethodPost, path, "recruiter", map[string]string{"to": "SCREENING"}, "If-Match", `"7"`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.ErrCodeConcurrentModification, errorCode(t, rec))

	rec = s.do(http.MethodPost, path, "recruiter", map[string]string{"to": "SCREENING"}, "If-Match", `W/"1"`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `"2"`, rec.Header().Get("ETag"))

	rec = s.do(http.MethodPost, path, "recruiter", map[string]string{"to": "SHORTLISTED"}, "If-Match", "not-a-version")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestTransition_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	app := s.submit()
	path := "/api/v1/applications/" + app.ID + "/transitions"

	rec := s.do(http.MethodPost, path, "recruiter", map[string]string{"to": "HIRED"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.ErrCodeIllegalTransition, errorCode(t, rec))

	rec = s.do(http.MethodPost, path, "applicant", map[string]string{"to": "SCREENING"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errors.ErrCodeUnauthorized, errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/v1/applications/missing/transitions", "recruiter", map[string]string{"to": "SCREENING"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, path, "applicant", map[string]string{"to": "WITHDRAWN", "reason": "accepted elsewhere"})
	require.Equal(t, http.StatusOK, rec.Code)
	var withdrawn models.Application
	decodeBody(t, rec, &withdrawn)
	assert.Equal(t, models.StatusWithdrawn, withdrawn.Status)
}

func TestAllowedTransitions(t *testing.T) {
	s := newTestServer(t)
	app := s.submit()

	rec := s.do(http.MethodGet, "/api/v1/applications/"+app.ID+"/transitions", "applicant", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Targets []models.ApplicationStatus `json:"targets"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, []models.ApplicationStatus{models.StatusWithdrawn}, body.Targets)
}

func TestGetApplication_OwnerScoping(t *testing.T) {
	s := newTestServer(t)
	app := s.submit()

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/applications/"+app.ID, "applicant", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/applications/"+app.ID, "recruiter", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/applications/"+app.ID, "applicant-2", nil).Code)
}

func TestListApplications(t *testing.T) {
	s := newTestServer(t)
	s.submit()

	rec := s.do(http.MethodGet, "/api/v1/applications?vacancyId=vac-1", "recruiter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, 1, body.Count)

	rec = s.do(http.MethodGet, "/api/v1/applications", "applicant-2", nil)
	decodeBody(t, rec, &body)
	assert.Equal(t, 0, body.Count)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/applications?limit=-1", "recruiter", nil).Code)
}

func TestHistory(t *testing.T) {
	s := newTestServer(t)
	app := s.submit()
	s.history.entries = []audit.Entry{
		{EventID: "evt-1", EventType: models.EventApplicationSubmitted, ApplicationID: app.ID, OccurredAt: time.Now()},
		{EventID: "evt-2", EventType: models.EventApplicationSubmitted, ApplicationID: "other"},
	}

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/applications/"+app.ID+"/history", "applicant", nil).Code)

	rec := s.do(http.MethodGet, "/api/v1/applications/"+app.ID+"/history", "recruiter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []audit.Entry `json:"items"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "evt-1", body.Items[0].EventID)
}

func TestTests_AnswerKeysAreStaffOnly(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/tests", "recruiter", map[string]interface{}{
		"vacancyId":    "vac-1",
		"title":        "Basics",
		"kind":         "INTERNAL_QUIZ",
		"passingScore": 50,
		"questions": []map[string]interface{}{
			{"type": "TRUE_FALSE", "prompt": "Go has generics", "correctBool": true, "points": 5},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var test models.Test
	decodeBody(t, rec, &test)

	staff := s.do(http.MethodGet, "/api/v1/tests/"+test.ID, "recruiter", nil)
	require.Equal(t, http.StatusOK, staff.Code)
	assert.Contains(t, staff.Body.String(), "correctBool")

	public := s.do(http.MethodGet, "/api/v1/tests/"+test.ID, "applicant", nil)
	require.Equal(t, http.StatusOK, public.Code)
	assert.NotContains(t, public.Body.String(), "correctBool")
}

func TestInterviewLifecycle(t *testing.T) {
	s := newTestServer(t)
	app := s.submit()
	base := "/api/v1/applications/" + app.ID

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/transitions", "recruiter", map[string]string{"to": "SCREENING"}).Code)

	rec := s.do(http.MethodPost, base+"/interviews", "recruiter", map[string]interface{}{
		"round":           1,
		"scheduledAt":     "2026-03-01T09:00:00Z",
		"durationMinutes": 45,
		"interviewerIds":  []string{"interviewer-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var iv models.Interview
	decodeBody(t, rec, &iv)

	rec = s.do(http.MethodPost, "/api/v1/interviews/"+iv.ID+"/cancel", "recruiter", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/interviews/"+iv.ID+"/reschedule", "recruiter", map[string]string{
		"scheduledAt": "2026-03-02T09:00:00Z",
		"reason":      "interviewer ill",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/interviews/"+iv.ID+"/complete", "recruiter", map[string]interface{}{
		"verdicts": []map[string]interface{}{{"interviewerId": "interviewer-1", "attended": true}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &iv)
	assert.Equal(t, models.InterviewCompleted, iv.Status)

	rec = s.do(http.MethodGet, base+"/interviews", "applicant", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
