package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError, so all responses
// share one shape.
//
// CONSISTENT ERROR FORMAT:
//
//	{"error": "not_found", "message": "ticket not found with id abc123"}
//
// Validation failures add the per-field list the web form renders inline:
//
//	{"error": "validation_error", "message": "title: Title is required; status: ...",
//	 "fields": [{"field": "title", "message": "Title is required"}, ...]}

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/ticketflow/internal/apperror"
)

// maxBodyBytes caps request bodies; the largest legitimate body is a ticket
// with a 500-character description.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string                `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string                `json:"message"` // Human-readable description
	Fields  []apperror.FieldError `json:"fields,omitempty"`
}

// writeJSON sends data as JSON with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body; once Encode writes, the
// headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation          → 400 validation_error (with fields)
//	ErrInvalidCredentials  → 401 invalid_credentials
//	ErrUnauthorized        → 401 unauthorized
//	ErrNotFound            → 404 not_found
//	ErrConflict            → 409 conflict
//	anything else          → 500 internal_error, message hidden
//
// errors.As walks through the fmt.Errorf("service/...: %w") wrappers the
// service layer adds, so the *AppError is found at any depth.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrInvalidCredentials):
			status = http.StatusUnauthorized
			errorType = "invalid_credentials"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Fields:  appErr.Fields,
		})
		return
	}

	// Unknown error: never expose internals (SQL, file paths) to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads one JSON value from the body into dst.
// A malformed or oversized body becomes a validation error on field "body".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", fmt.Sprintf("Request body must be at most %d bytes", tooLarge.Limit))
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

// fail logs unexpected errors, which writeError hides from the client,
// then sends the response.
func fail(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}

// ErrorWriter adapts fail for code outside this package, such as the
// auth.RequireSession middleware.
func ErrorWriter(logger *slog.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		fail(logger, w, r, err)
	}
}
