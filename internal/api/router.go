// Package api is the REST boundary of the pipeline.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"hiring-pipeline/internal/assessment"
	"hiring-pipeline/internal/common/auth"
	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/evaluation"
	"hiring-pipeline/internal/interview"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/sinks/audit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// AuditHistory is satisfied by *audit.Sink.
type AuditHistory interface {
	History(ctx context.Context, applicationID string) ([]audit.Entry, error)
}

// Check is one named dependency probed by /ready.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Dependencies struct {
	Pipeline       *pipeline.Service
	Ledger         *evaluation.Ledger
	Assessments    *assessment.Service
	Scheduler      *interview.Scheduler
	Audit          AuditHistory
	Authenticator  auth.Authenticator
	Validator      *validation.Validator
	ReadyChecks    []Check
	RequestTimeout time.Duration
	Logger         logger.Logger
}

type handler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRouter mounts the health endpoints and the authenticated /api/v1 tree.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Validator == nil {
		deps.Validator = validation.MustValidator()
	}
	if deps.RequestTimeout == 0 {
		deps.RequestTimeout = 15 * time.Second
	}
	h := &handler{
		deps:   deps,
		logger: deps.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(deps.RequestTimeout))
		r.Use(Authenticate(deps.Authenticator, h.logger))

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", h.submitApplication)
			r.Get("/", h.listApplications)

			r.Route("/{applicationID}", func(r chi.Router) {
				r.Get("/", h.getApplication)
				r.Get("/transitions", h.allowedTransitions)
				r.Post("/transitions", h.requestTransition)
				r.Get("/history", h.history)

				r.Get("/evaluations", h.listEvaluations)
				r.Post("/evaluations", h.submitEvaluation)
				r.Get("/evaluations/signal", h.evaluationSignal)

				r.Get("/interviews", h.listInterviews)
				r.Post("/interviews", h.scheduleInterview)

				r.Get("/attempts", h.listAttempts)
				r.Post("/tests/{testID}/invite", h.inviteToTest)
				r.Post("/tests/{testID}/attempt", h.submitAttempt)
				r.Post("/tests/{testID}/complete", h.markTestComplete)
			})
		})

		r.Post("/tests", h.createTest)
		r.Get("/tests/{testID}", h.getTest)

		r.Route("/interviews/{interviewID}", func(r chi.Router) {
			r.Get("/", h.getInterview)
			r.Post("/reschedule", h.rescheduleInterview)
			r.Post("/cancel", h.cancelInterview)
			r.Post("/complete", h.completeInterview)
		})
	})

	return r
}

// decode validates the body against schema, then unmarshals it into dst.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, schema string, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.NewValidationErrorf("read body: %v", err)
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := h.deps.Validator.Validate(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.NewValidationErrorf("decode body: %v", err)
	}
	return nil
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	writeError(w, h.logger, err)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready reports 503 when any dependency fails its ping.
func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps.ReadyChecks))
	for _, c := range h.deps.ReadyChecks {
		if err := c.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[c.Name] = err.Error()
			continue
		}
		checks[c.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}
