// internal/workers/application/submit-application/handler.go
package submitapplication

import (
	"context"
	"encoding/json"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "submit-application"
)

// Submitter is satisfied by *pipeline.Service.
type Submitter interface {
	SubmitApplication(ctx context.Context, principal models.Principal, in pipeline.SubmitInput) (*models.Application, error)
}

type Handler struct {
	config    *Config
	service   Submitter
	validator *validation.Validator
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, service Submitter, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		service:   service,
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

	return h.completeJob(ctx, client, job, output)
}

func (h *Handler) run(ctx context.Context, variables string) (*Output, error) {
	vars := map[string]interface{}{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, errors.NewValidationErrorf("parse variables: %v", err)
	}
	if err := h.validator.ValidateMap(validation.SchemaSubmitApplication, vars); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewValidationErrorf("parse input: %v", err)
	}
	return h.Execute(ctx, &input)
}

// Execute submits the application on behalf of the actor in input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	principal, err := models.NewPrincipal(input.ActorID, input.ActorRole)
	if err != nil {
		return nil, errors.NewValidationErrorf("actor: %v", err)
	}

	app, err := h.service.SubmitApplication(ctx, principal, pipeline.SubmitInput{
		VacancyID:          input.VacancyID,
		CVID:               input.CVID,
		MotivationLetterID: input.MotivationLetterID,
		Notes:              input.Notes,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID:     app.ID,
		ApplicationStatus: string(app.Status),
		Version:           app.Version,
		CreatedAt:         app.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return errors.NewInternalError(err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return errors.NewExternalServiceError("zeebe", err)
	}

	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":        job.Key,
		"applicationId": output.ApplicationID,
	})
	return nil
}
