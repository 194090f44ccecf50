package api

import (
	"net/http"
	"strconv"
	"strings"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/evaluation"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"

	"github.com/go-chi/chi/v5"
)

func principalOf(r *http.Request) models.Principal {
	p, _ := PrincipalFromContext(r.Context())
	return p
}

func writeApplication(w http.ResponseWriter, status int, app *models.Application) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(app.Version, 10)))
	writeJSON(w, status, app)
}

// parseIfMatch reads the application version from an If-Match header.
// Absent or "*" means no expectation.
func parseIfMatch(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return nil, errors.NewValidationErrorf("If-Match must carry an application version, got %q", r.Header.Get("If-Match"))
	}
	return &v, nil
}

func (h *handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	var in pipeline.SubmitInput
	if err := h.decode(w, r, validation.SchemaSubmitApplication, &in); err != nil {
		h.fail(w, err)
		return
	}
	app, err := h.deps.Pipeline.SubmitApplication(r.Context(), principalOf(r), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeApplication(w, http.StatusCreated, app)
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ApplicationFilter{
		VacancyID:   q.Get("vacancyId"),
		ApplicantID: q.Get("applicantId"),
		Status:      models.ApplicationStatus(q.Get("status")),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		h.fail(w, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		h.fail(w, err)
		return
	}

	apps, err := h.deps.Pipeline.ListApplications(r.Context(), principalOf(r), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": apps, "count": len(apps)})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationErrorf("invalid numeric parameter %q", raw)
	}
	return n, nil
}

func (h *handler) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.deps.Pipeline.GetApplication(r.Context(), principalOf(r), chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeApplication(w, http.StatusOK, app)
}

func (h *handler) allowedTransitions(w http.ResponseWriter, r *http.Request) {
	targets, err := h.deps.Pipeline.AllowedTransitions(r.Context(), principalOf(r), chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"targets": targets})
}

func (h *handler) requestTransition(w http.ResponseWriter, r *http.Request) {
	var req pipeline.TransitionRequest
	if err := h.decode(w, r, validation.SchemaRequestTransition, &req); err != nil {
		h.fail(w, err)
		return
	}
	req.ApplicationID = chi.URLParam(r, "applicationID")

	version, err := parseIfMatch(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if version != nil {
		if req.ExpectedVersion != nil && *req.ExpectedVersion != *version {
			h.fail(w, errors.NewValidationError("If-Match and expectedVersion disagree"))
			return
		}
		req.ExpectedVersion = version
	}

	app, err := h.deps.Pipeline.RequestTransition(r.Context(), principalOf(r), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeApplication(w, http.StatusOK, app)
}

// history is the audit trail; it is staff only and requires read access to
// the application.
func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)
	if !principal.IsStaff() {
		h.fail(w, errors.NewUnauthorizedError("audit history is staff only"))
		return
	}
	if h.deps.Audit == nil {
		h.fail(w, errors.NewNotFoundError("audit history", chi.URLParam(r, "applicationID")))
		return
	}
	app, err := h.deps.Pipeline.GetApplication(r.Context(), principal, chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	entries, err := h.deps.Audit.History(r.Context(), app.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries})
}

func (h *handler) submitEvaluation(w http.ResponseWriter, r *http.Request) {
	var in evaluation.Input
	if err := h.decode(w, r, validation.SchemaSubmitEvaluation, &in); err != nil {
		h.fail(w, err)
		return
	}
	e, err := h.deps.Ledger.SubmitEvaluation(r.Context(), principalOf(r), chi.URLParam(r, "applicationID"), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *handler) listEvaluations(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Ledger.List(r.Context(), principalOf(r), chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *handler) evaluationSignal(w http.ResponseWriter, r *http.Request) {
	signal, err := h.deps.Ledger.Signal(r.Context(), principalOf(r), chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signal":    signal,
		"satisfied": signal.Satisfied(),
	})
}
