// internal/workers/assessment/invite-to-test/handler.go
package invitetotest

import (
	"context"
	"encoding/json"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "invite-to-test"
)

type Inviter interface {
	InviteToTest(ctx context.Context, principal models.Principal, applicationID, testID string) (*models.TestAttempt, error)
}

type Handler struct {
	config    *Config
	service   Inviter
	validator *validation.Validator
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, service Inviter, validator *validation.Validator, log logger.Logger) *Handler {
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
		"jobKey":    job.Key,
		"attemptId": output.AttemptID,
	})
	return nil
}

func (h *Handler) run(ctx context.Context, variables string) (*Output, error) {
	vars := map[string]interface{}{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, errors.NewValidationErrorf("parse variables: %v", err)
	}
	if err := h.validator.ValidateMap(validation.SchemaInviteToTest, vars); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewValidationErrorf("parse input: %v", err)
	}
	return h.Execute(ctx, &input)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	principal, err := models.NewPrincipal(input.ActorID, input.ActorRole)
	if err != nil {
		return nil, errors.NewValidationErrorf("actor: %v", err)
	}

	attempt, err := h.service.InviteToTest(ctx, principal, input.ApplicationID, input.TestID)
	if err != nil {
		return nil, err
	}

	return &Output{
		AttemptID:     attempt.ID,
		TestID:        attempt.TestID,
		AttemptStatus: string(attempt.Status),
		TotalScore:    attempt.TotalScore,
		InvitedAt:     attempt.InvitedAt.UTC().Format(time.RFC3339),
	}, nil
}
