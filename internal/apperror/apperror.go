// Package apperror defines the domain errors shared by every layer.
//
// Lower layers return an *AppError wrapping one of the sentinel errors below.
// Callers test the kind with errors.Is and read the human-readable message
// (and, for validation failures, the per-field details) with errors.As.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("Validation Error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: first field causing the error
	// Fields lists every offending field of a validation failure, in the
	// order they were checked.
	Fields []FieldError
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

// Invalid bundles several field failures into one validation error.
// It returns nil when fields is empty so callers can write:
//
//	if err := apperror.Invalid(problems...); err != nil {
//	    return nil, err
//	}
func Invalid(fields ...FieldError) *AppError {
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		return ValidationFailed(fields[0].Field, fields[0].Message)
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return &AppError{
		Err:     ErrValidation,
		Message: strings.Join(parts, "; "),
		Field:   fields[0].Field,
		Fields:  fields,
	}
}

// DuplicateAccount is returned by registration when the email is taken.
func DuplicateAccount() *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "User already exists with this email",
		Field:   "email",
	}
}

// InvalidCredentials deliberately carries the same message for an unknown
// email and a wrong password.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid email or password",
	}
}

// Unauthorized is returned when a protected operation runs without a session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
