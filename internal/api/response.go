package api

import (
	"encoding/json"
	"net/http"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Code     errors.ErrorCode       `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps err through the error taxonomy. Internal errors are logged
// and their details withheld from the caller.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	stdErr := errors.AsStandard(err)
	status := errors.HTTPStatus(stdErr.Code)

	body := ErrorBody{
		Code:     stdErr.Code,
		Message:  stdErr.Message,
		Details:  stdErr.Details,
		Metadata: stdErr.Metadata,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", map[string]interface{}{
			"code":  string(stdErr.Code),
			"error": err.Error(),
		})
		if stdErr.Code == errors.ErrCodeInternal {
			body.Details = ""
			body.Metadata = nil
		}
	}
	writeJSON(w, status, body)
}
