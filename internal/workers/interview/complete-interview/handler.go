// internal/workers/interview/complete-interview/handler.go
package completeinterview

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "complete-interview"
)

type Completer interface {
	Complete(ctx context.Context, principal models.Principal, interviewID string, verdicts []models.Verdict) (*models.Interview, error)
}

type Handler struct {
	config    *Config
	scheduler Completer
	validator *validation.Validator
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, scheduler Completer, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		scheduler: scheduler,
		validator: validator,
		errors:    errors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.run(ctx, job.Variables)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return err
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return errors.NewExternalServiceError("zeebe", err)
	}

	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":      job.Key,
		"interviewId": output.InterviewID,
		"round":       output.Round,
	})
	return nil
}

func (h *Handler) run(ctx context.Context, variables string) (*Output, error) {
	vars := map[string]interface{}{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, errors.NewValidationErrorf("parse variables: %v", err)
	}
	if err := h.validator.ValidateMap(validation.SchemaCompleteInterview, vars); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewValidationErrorf("parse input: %v", err)
	}
	return h.Execute(ctx, &input)
}

// Execute closes the interview with the submitted verdicts.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.InterviewID) == "" {
		return nil, errors.NewValidationError("interviewId is required")
	}
	principal, err := models.NewPrincipal(input.ActorID, input.ActorRole)
	if err != nil {
		return nil, errors.NewValidationErrorf("actor: %v", err)
	}

	interview, err := h.scheduler.Complete(ctx, principal, input.InterviewID, input.Verdicts)
	if err != nil {
		return nil, err
	}

	out := &Output{
		InterviewID:     interview.ID,
		ApplicationID:   interview.ApplicationID,
		InterviewStatus: string(interview.Status),
		Round:           interview.Round,
	}
	for _, a := range interview.Assignments {
		if a.Attended {
			out.AttendedCount++
		}
	}
	if interview.CompletedAt != nil {
		out.CompletedAt = interview.CompletedAt.UTC().Format(time.RFC3339)
	}
	return out, nil
}
