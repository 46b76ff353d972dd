package model

import (
	"errors"
	"fmt"
)

// Engine error kinds. Engine calls wrap these with context; test with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfRange      = errors.New("position out of range")
	ErrEmpty           = errors.New("queue is empty")
	ErrNotFound        = errors.New("not found")
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeOutOfRange  ErrorCode = "OUT_OF_RANGE"
	ErrCodeEmpty       ErrorCode = "EMPTY"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeConflict    ErrorCode = "CONFLICT"
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the queuesim API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches an APIError against the engine sentinel of the same kind.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case ErrCodeValidation:
		return target == ErrInvalidArgument
	case ErrCodeOutOfRange:
		return target == ErrOutOfRange
	case ErrCodeEmpty:
		return target == ErrEmpty
	case ErrCodeNotFound:
		return target == ErrNotFound
	}
	return false
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrCodeValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// APIErrorFrom maps an engine error onto an API error. An *APIError is
// returned unchanged; a state transition error is a conflict.
func APIErrorFrom(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var transErr *InvalidTransitionError
	if errors.As(err, &transErr) {
		return &APIError{Code: ErrCodeConflict, Message: err.Error()}
	}
	code := ErrCodeInternal
	switch {
	case errors.Is(err, ErrInvalidArgument):
		code = ErrCodeValidation
	case errors.Is(err, ErrOutOfRange):
		code = ErrCodeOutOfRange
	case errors.Is(err, ErrEmpty):
		code = ErrCodeEmpty
	case errors.Is(err, ErrNotFound):
		code = ErrCodeNotFound
	}
	return &APIError{Code: code, Message: err.Error()}
}

// InvalidTransitionError is returned when a client state transition is invalid.
type InvalidTransitionError struct {
	ID   string
	From ClientState
	To   ClientState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid client state transition: %s → %s (client %s)", e.From, e.To, e.ID)
}

// Unwrap lets callers match the transition error as an invalid argument.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidArgument
}
