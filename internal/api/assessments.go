package api

import (
	"net/http"

	"hiring-pipeline/internal/assessment"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *handler) createTest(w http.ResponseWriter, r *http.Request) {
	var def assessment.TestDefinition
	if err := h.decode(w, r, validation.SchemaCreateTest, &def); err != nil {
		h.fail(w, err)
		return
	}
	test, err := h.deps.Assessments.CreateTest(r.Context(), principalOf(r), def)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, test)
}

// getTest returns answer keys to staff and the public view to applicants.
func (h *handler) getTest(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)
	testID := chi.URLParam(r, "testID")

	if principal.IsStaff() {
		test, err := h.deps.Assessments.GetTest(r.Context(), principal, testID)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, test)
		return
	}

	test, err := h.deps.Assessments.GetPublicTest(r.Context(), principal, testID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (h *handler) inviteToTest(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.deps.Assessments.InviteToTest(r.Context(), principalOf(r),
		chi.URLParam(r, "applicationID"), chi.URLParam(r, "testID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Answers []models.Answer `json:"answers"`
	}
	if err := h.decode(w, r, validation.SchemaSubmitAttempt, &body); err != nil {
		h.fail(w, err)
		return
	}
	attempt, err := h.deps.Assessments.SubmitAttempt(r.Context(), principalOf(r),
		chi.URLParam(r, "applicationID"), chi.URLParam(r, "testID"), body.Answers)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *handler) markTestComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := h.decode(w, r, validation.SchemaMarkTestComplete, &body); err != nil {
		h.fail(w, err)
		return
	}
	attempt, err := h.deps.Assessments.MarkComplete(r.Context(), principalOf(r),
		chi.URLParam(r, "applicationID"), chi.URLParam(r, "testID"), body.Notes)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.deps.Assessments.Attempts(r.Context(), principalOf(r), chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  attempts,
		"signal": assessment.Signal(attempts),
	})
}
