package handler

import (
	"encoding/json"
	"net/http"

	"github.com/devrev/catalogd/internal/errors"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError maps err to its HTTP status and writes the standard error body.
// Errors that are not CatalogErrors are reported as internal errors.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	code := errors.ErrCodeInternal
	message := "internal server error"

	if errors.IsCatalogError(err) {
		code = errors.GetCode(err)
		status = (&errors.CatalogError{Code: code}).HTTPStatus()
		message = err.Error()
	}

	requestID := r.Header.Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		logger.Error("HTTP error response",
			zap.Int("status_code", status),
			zap.String("error_code", code.String()),
			zap.String("request_id", requestID),
			zap.Error(err))
	} else {
		logger.Debug("HTTP error response",
			zap.Int("status_code", status),
			zap.String("error_code", code.String()),
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	WriteErrorResponse(w, status, code, message, requestID)
}

// WriteErrorResponse writes an error body with an explicit status and code
func WriteErrorResponse(w http.ResponseWriter, status int, code errors.ErrorCode, message, requestID string) {
	if code == errors.ErrCodeRateLimited {
		w.Header().Set("Retry-After", "1")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:    "error",
		ErrorCode: code.String(),
		Message:   message,
		RequestID: requestID,
	})
}

// writeJSON writes data as a JSON response
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
