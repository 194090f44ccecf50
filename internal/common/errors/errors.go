// Package errors provides the standardized error taxonomy shared by the
// pipeline services, the REST boundary and the Zeebe job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Business rule errors. Callers must be able to tell these apart, so none of
// them is ever folded into a generic failure.
const (
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeNotAssigned            ErrorCode = "NOT_ASSIGNED"
	ErrCodeIllegalTransition      ErrorCode = "ILLEGAL_TRANSITION"
	ErrCodeGateNotSatisfied       ErrorCode = "GATE_NOT_SATISFIED"
	ErrCodeDuplicateAction        ErrorCode = "DUPLICATE_ACTION"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
)

// Technical errors.
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeAuditRecordFailed        ErrorCode = "AUDIT_RECORD_FAILED"
	ErrCodeWorkflowPublishFailed    ErrorCode = "WORKFLOW_PUBLISH_FAILED"
	ErrCodeLockUnavailable          ErrorCode = "LOCK_UNAVAILABLE"
	ErrCodeAuthentication           ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any *StandardError carrying the same code, so the sentinels
// below can be used with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation             = &StandardError{Code: ErrCodeValidation}
	ErrUnauthorized           = &StandardError{Code: ErrCodeUnauthorized}
	ErrNotAssigned            = &StandardError{Code: ErrCodeNotAssigned}
	ErrIllegalTransition      = &StandardError{Code: ErrCodeIllegalTransition}
	ErrGateNotSatisfied       = &StandardError{Code: ErrCodeGateNotSatisfied}
	ErrDuplicateAction        = &StandardError{Code: ErrCodeDuplicateAction}
	ErrNotFound               = &StandardError{Code: ErrCodeNotFound}
	ErrConcurrentModification = &StandardError{Code: ErrCodeConcurrentModification}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newBusiness(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func newTechnical(code ErrorCode, message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewValidationError reports malformed input.
func NewValidationError(details string) *StandardError {
	return newBusiness(ErrCodeValidation, "Validation failed", details)
}

// NewValidationErrorf is NewValidationError with formatting.
func NewValidationErrorf(format string, args ...interface{}) *StandardError {
	return NewValidationError(fmt.Sprintf(format, args...))
}

// NewUnauthorizedError reports a role that may not perform the action.
func NewUnauthorizedError(details string) *StandardError {
	return newBusiness(ErrCodeUnauthorized, "Role not permitted for this action", details)
}

// NewNotAssignedError reports an interviewer acting without an assignment.
func NewNotAssignedError(interviewerID, applicationID string) *StandardError {
	return newBusiness(ErrCodeNotAssigned, "Interviewer holds no active assignment",
		fmt.Sprintf("interviewerId: %s, applicationId: %s", interviewerID, applicationID))
}

// NewIllegalTransitionError reports an undeclared edge, including skip-ahead.
func NewIllegalTransitionError(from, to string) *StandardError {
	return newBusiness(ErrCodeIllegalTransition, "Transition not allowed",
		fmt.Sprintf("from: %s, to: %s", from, to)).
		WithMetadata("from", from).
		WithMetadata("to", to)
}

// NewGateNotSatisfiedError reports a declared edge whose precondition is unmet.
func NewGateNotSatisfiedError(gate, details string) *StandardError {
	return newBusiness(ErrCodeGateNotSatisfied, "Transition precondition not satisfied", details).
		WithMetadata("gate", gate)
}

// NewDuplicateActionError reports a repeated invite, submission or application.
func NewDuplicateActionError(details string) *StandardError {
	return newBusiness(ErrCodeDuplicateAction, "Action already performed", details)
}

// NewNotFoundError reports an unknown entity id.
func NewNotFoundError(entity, id string) *StandardError {
	return newBusiness(ErrCodeNotFound, fmt.Sprintf("%s not found", entity),
		fmt.Sprintf("id: %s", id))
}

// NewConcurrentModificationError reports a write against a stale snapshot.
func NewConcurrentModificationError(entity, id string) *StandardError {
	return newBusiness(ErrCodeConcurrentModification, "Entity was modified concurrently",
		fmt.Sprintf("%s: %s", entity, id))
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newTechnical(ErrCodeDatabaseConnectionFailed, "Database connection error", err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	e := newTechnical(ErrCodeQueryExecutionFailed, "Database query execution error", err)
	e.Details = fmt.Sprintf("queryType: %s, error: %v", queryType, err)
	return e
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	e := newTechnical(ErrCodeNotificationSendFailed, "Notification delivery failed", err)
	e.Details = fmt.Sprintf("channel: %s, error: %v", channel, err)
	return e
}

// NewAuditRecordFailedError creates a retryable audit persistence error.
func NewAuditRecordFailedError(target string, err error) *StandardError {
	e := newTechnical(ErrCodeAuditRecordFailed, "Audit record failed", err)
	e.Details = fmt.Sprintf("target: %s, error: %v", target, err)
	return e
}

// NewWorkflowPublishFailedError creates a retryable Zeebe publish error.
func NewWorkflowPublishFailedError(err error) *StandardError {
	return newTechnical(ErrCodeWorkflowPublishFailed, "Workflow message publish failed", err)
}

// NewLockUnavailableError reports a per-application lock that could not be taken in time.
func NewLockUnavailableError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLockUnavailable,
		Message:   "Entity is locked by another request",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newTechnical(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newTechnical(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err)
}

func NewAuthenticationError(details string) *StandardError {
	return newBusiness(ErrCodeAuthentication, "Authentication failed", details)
}

func NewInternalError(err error) *StandardError {
	e := newTechnical(ErrCodeInternal, "Unexpected error", err)
	e.Retryable = false
	return e
}

// ==========================
// 4. Conversion
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes are
// identical; the map documents which ones BPMN models may catch.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidation:               "VALIDATION_ERROR",
	ErrCodeUnauthorized:             "UNAUTHORIZED",
	ErrCodeNotAssigned:              "NOT_ASSIGNED",
	ErrCodeIllegalTransition:        "ILLEGAL_TRANSITION",
	ErrCodeGateNotSatisfied:         "GATE_NOT_SATISFIED",
	ErrCodeDuplicateAction:          "DUPLICATE_ACTION",
	ErrCodeNotFound:                 "NOT_FOUND",
	ErrCodeConcurrentModification:   "CONCURRENT_MODIFICATION",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodeAuditRecordFailed:        "AUDIT_RECORD_FAILED",
	ErrCodeWorkflowPublishFailed:    "WORKFLOW_PUBLISH_FAILED",
	ErrCodeLockUnavailable:          "LOCK_UNAVAILABLE",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeAuditRecordFailed,
		ErrCodeWorkflowPublishFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout, ErrCodeLockUnavailable:
		return 2

	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// AsStandard unwraps err to a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the taxonomy code of err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// HTTPStatus maps a code to the REST boundary status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeUnauthorized, ErrCodeNotAssigned:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeIllegalTransition, ErrCodeDuplicateAction, ErrCodeConcurrentModification:
		return http.StatusConflict
	case ErrCodeGateNotSatisfied:
		return http.StatusUnprocessableEntity
	case ErrCodeLockUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeUnauthorized, ErrCodeNotAssigned, ErrCodeAuthentication:
		return "ACCESS"
	case ErrCodeIllegalTransition, ErrCodeGateNotSatisfied, ErrCodeDuplicateAction:
		return "BUSINESS_RULE"
	case ErrCodeConcurrentModification, ErrCodeLockUnavailable:
		return "CONCURRENCY"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	}
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"), strings.Contains(codeStr, "AUDIT"), strings.Contains(codeStr, "WORKFLOW"):
		return "SINK"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
