package http

import (
	"errors"
	"net/http"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// errorStatus maps an error kind to its HTTP status and envelope code.
func errorStatus(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsRetryable(err):
		// The unit lost every retry to concurrent writers; the client may resubmit.
		return http.StatusConflict, "concurrent_modification"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError renders err in the error envelope. Internal errors are logged and
// reported with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, r, status, code, "An unexpected error occurred", nil)
		return
	}

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	details := shared.FieldErrors(err)
	if details != nil {
		message = "request validation failed"
	}
	writeJSONError(w, r, status, code, message, details)
}
