package api

import (
	"net/http"
	"time"

	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/interview"
	"hiring-pipeline/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *handler) scheduleInterview(w http.ResponseWriter, r *http.Request) {
	var in interview.ScheduleInput
	if err := h.decode(w, r, validation.SchemaScheduleInterview, &in); err != nil {
		h.fail(w, err)
		return
	}
	in.ApplicationID = chi.URLParam(r, "applicationID")

	iv, err := h.deps.Scheduler.Schedule(r.Context(), principalOf(r), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, iv)
}

func (h *handler) listInterviews(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Scheduler.List(r.Context(), principalOf(r), chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *handler) getInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := h.deps.Scheduler.Get(r.Context(), principalOf(r), chi.URLParam(r, "interviewID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (h *handler) rescheduleInterview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduledAt time.Time `json:"scheduledAt"`
		Reason      string    `json:"reason"`
	}
	if err := h.decode(w, r, validation.SchemaRescheduleInterview, &body); err != nil {
		h.fail(w, err)
		return
	}
	iv, err := h.deps.Scheduler.Reschedule(r.Context(), principalOf(r),
		chi.URLParam(r, "interviewID"), body.ScheduledAt, body.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (h *handler) cancelInterview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := h.decode(w, r, validation.SchemaCancelInterview, &body); err != nil {
		h.fail(w, err)
		return
	}
	iv, err := h.deps.Scheduler.Cancel(r.Context(), principalOf(r), chi.URLParam(r, "interviewID"), body.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (h *handler) completeInterview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Verdicts []models.Verdict `json:"verdicts"`
	}
	if err := h.decode(w, r, validation.SchemaCompleteInterview, &body); err != nil {
		h.fail(w, err)
		return
	}
	iv, err := h.deps.Scheduler.Complete(r.Context(), principalOf(r), chi.URLParam(r, "interviewID"), body.Verdicts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}
