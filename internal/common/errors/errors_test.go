package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := NewGateNotSatisfiedError("evaluation", "no positive evaluation")
	wrapped := fmt.Errorf("transition: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrGateNotSatisfied))
	assert.False(t, stderrors.Is(wrapped, ErrIllegalTransition))
	assert.Equal(t, ErrCodeGateNotSatisfied, CodeOf(wrapped))
}

func TestAsStandard_WrapsUnknownErrors(t *testing.T) {
	stdErr := AsStandard(stderrors.New("boom"))
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.False(t, stdErr.Retryable)
	assert.Nil(t, AsStandard(nil))
}

func TestTechnicalErrors_UnwrapCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewQueryExecutionFailedError("update_application", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Details, "update_application")
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"business error", NewDuplicateActionError("attempt exists"), "DUPLICATE_ACTION", 0},
		{"illegal transition carries edge", NewIllegalTransitionError("APPLIED", "OFFERED"), "ILLEGAL_TRANSITION", 0},
		{"technical error", NewNotificationSendFailedError("email", stderrors.New("throttled")), "NOTIFICATION_SEND_FAILED", 3},
		{"unknown code falls back", &StandardError{Code: "SOMETHING_ELSE"}, "SOMETHING_ELSE", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmnErr.Code)
			assert.Equal(t, tt.wantRetries, bpmnErr.Retries)

			vars := bpmnErr.ToErrorVariables()
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}

	vars := ConvertToBPMNError(NewIllegalTransitionError("APPLIED", "OFFERED")).ToErrorVariables()
	assert.Equal(t, "APPLIED", vars["from"])
	assert.Equal(t, "OFFERED", vars["to"])
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeValidation))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrCodeUnauthorized))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrCodeNotAssigned))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeIllegalTransition))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(ErrCodeGateNotSatisfied))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeDuplicateAction))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrCodeNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeConcurrentModification))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeQueryExecutionFailed))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "ACCESS", GetErrorCategory(ErrCodeNotAssigned))
	assert.Equal(t, "BUSINESS_RULE", GetErrorCategory(ErrCodeGateNotSatisfied))
	assert.Equal(t, "CONCURRENCY", GetErrorCategory(ErrCodeConcurrentModification))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "SINK", GetErrorCategory(ErrCodeAuditRecordFailed))
}
