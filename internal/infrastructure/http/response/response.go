// Package response writes JSON success and error bodies in the API's
// standard envelope.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/domain"
)

// encodeFailureJSON is written when a success body cannot be marshaled.
const encodeFailureJSON = `{"error":{"code":"INTERNAL_ERROR","message":"failed to encode response"}}`

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []ErrorField `json:"details,omitempty"`
}

// ErrorField describes a field-specific error.
type ErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// OK sends a 200 OK response with JSON data.
func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, data)
}

// Created sends a 201 Created response with JSON data.
func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, data)
}

// write marshals before writing the status so an encoding failure still
// produces a 500 with a JSON body.
func write(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(encodeFailureJSON))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// ValidationError sends a 400 validation error with field details.
func ValidationError(w http.ResponseWriter, field, issue string) {
	write(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: "validation failed",
			Details: []ErrorField{
				{Field: field, Issue: issue},
			},
		},
	})
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// PayloadTooLarge sends a 413 Request Entity Too Large error.
func PayloadTooLarge(w http.ResponseWriter) {
	Error(w, "PAYLOAD_TOO_LARGE", "request body exceeds size limit", http.StatusRequestEntityTooLarge)
}

// Conflict sends a 409 Conflict error.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, "CONFLICT", message, http.StatusConflict)
}

// InternalError sends a 500 Internal Server Error.
// Logs the error server-side with request context but returns a generic message to the client to prevent information disclosure.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "Internal server error", "error", err)
	}
	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	write(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// FromDomainError maps domain and scheduling errors to HTTP responses.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if failure, ok := scheduler.AsGenerationFailure(err); ok {
		slog.WarnContext(r.Context(), "Occurrence generation failed", "error", err)
		Error(w, "GENERATION_FAILED", failure.Error(), http.StatusBadGateway)
		return
	}

	switch {
	// Validation errors (400)
	case errors.Is(err, domain.ErrConfiguration):
		ValidationError(w, "pattern", err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		ValidationError(w, "id", "invalid ID format")

	// Not found errors (404)
	case errors.Is(err, domain.ErrDefinitionNotFound):
		NotFound(w, "recurring project")
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "resource")

	// State and concurrency errors (409)
	case errors.Is(err, domain.ErrDefinitionInactive),
		errors.Is(err, domain.ErrAlreadyGenerated),
		errors.Is(err, domain.ErrVersionConflict):
		Conflict(w, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		Error(w, "TIMEOUT", "the operation timed out", http.StatusGatewayTimeout)

	// Unknown errors (500) - Log server-side, return generic message to client
	default:
		InternalError(w, r, err)
	}
}
