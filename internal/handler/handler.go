package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"food-compliance/internal/middleware"
	"food-compliance/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, code and
// message. The request ID, when present, is echoed as the correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, logger zerolog.Logger) {
	resp := model.ErrorResponse{Error: message, Code: code}
	if id := middleware.GetRequestID(r.Context()); id != uuid.Nil {
		resp.CorrelationID = id.String()
	}

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", message).
		Str("code", code).
		Int("status", status).
		Str("request_id", resp.CorrelationID).
		Msg("handler error")

	writeJSON(w, status, resp)
}

// writeDomainError maps err to a status code and writes it. Errors that are
// not domain errors are reported as internal errors without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error().Err(err).Msg("unexpected error")
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
		return
	}
	writeError(w, r, statusFor(domainErr.Code), domainErr.Code, domainErr.Message, logger)
}

// statusFor returns the HTTP status of a domain error code.
func statusFor(code string) int {
	switch code {
	case model.ErrCodeInvalidJSON, model.ErrCodeMissingField, model.ErrCodeInvalidProducts, model.ErrCodeInvalidID:
		return http.StatusBadRequest
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeAuditDisabled:
		return http.StatusNotImplemented
	case model.ErrCodeBatchTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeModelUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
