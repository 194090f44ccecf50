// internal/workers/evaluation/submit-evaluation/handler.go
package submitevaluation

import (
	"context"
	"encoding/json"
	"strings"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/evaluation"
	"hiring-pipeline/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "submit-evaluation"
)

type Ledger interface {
	SubmitEvaluation(ctx context.Context, principal models.Principal, applicationID string, in evaluation.Input) (*models.Evaluation, error)
	Signal(ctx context.Context, principal models.Principal, applicationID string) (evaluation.Signal, error)
}

type Handler struct {
	config    *Config
	ledger    Ledger
	validator *validation.Validator
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, ledger Ledger, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		ledger:    ledger,
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
		"jobKey":       job.Key,
		"evaluationId": output.EvaluationID,
	})
	return nil
}

func (h *Handler) run(ctx context.Context, variables string) (*Output, error) {
	vars := map[string]interface{}{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, errors.NewValidationErrorf("parse variables: %v", err)
	}
	if err := h.validator.ValidateMap(validation.SchemaSubmitEvaluation, vars); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewValidationErrorf("parse input: %v", err)
	}
	return h.Execute(ctx, &input)
}

// Execute records the evaluation and returns the signal including it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.ApplicationID) == "" {
		return nil, errors.NewValidationError("applicationId is required")
	}
	principal, err := models.NewPrincipal(input.ActorID, input.ActorRole)
	if err != nil {
		return nil, errors.NewValidationErrorf("actor: %v", err)
	}

	recorded, err := h.ledger.SubmitEvaluation(ctx, principal, input.ApplicationID, evaluation.Input{
		Rating:         input.Rating,
		Comments:       input.Comments,
		Strengths:      input.Strengths,
		Weaknesses:     input.Weaknesses,
		Recommendation: input.Recommendation,
	})
	if err != nil {
		return nil, err
	}

	signal, err := h.ledger.Signal(ctx, principal, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	return &Output{
		EvaluationID:    recorded.ID,
		Recommendation:  string(recorded.Recommendation),
		EvaluationCount: signal.Count,
		AverageRating:   signal.AverageRating,
		SignalSatisfied: signal.Satisfied(),
	}, nil
}
