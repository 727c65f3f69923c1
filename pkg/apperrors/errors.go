package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrConnection      = errors.New("connection failed")
	ErrFetch           = errors.New("fetch failed")
	ErrUnauthenticated = errors.New("no authentication token found")
	ErrBusy            = errors.New("operation already in progress for this source")
	ErrNotReady        = errors.New("source and schema are required")
	ErrSuperseded      = errors.New("request superseded by a newer request")
	ErrSessionClosed   = errors.New("session closed")
)

// ValidationError is a local precondition failure. It never reaches the network.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError returns a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MissingFieldError names the first required descriptor field that is unset.
type MissingFieldError struct {
	Field string
}

var fieldLabels = map[string]string{
	"host":     "Host",
	"port":     "Port",
	"database": "Database name",
	"username": "Username",
	"password": "Password",
	"table":    "Table name",
	"file":     "File",
}

func (e *MissingFieldError) Error() string {
	label, ok := fieldLabels[e.Field]
	if !ok {
		label = e.Field
	}
	return label + " is required"
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrValidation }

// ConnectionError is returned when the backend rejects a connectivity or
// schema request. Detail is the backend's "detail" message or a fallback.
type ConnectionError struct {
	Status int
	Detail string
	Err    error
}

func (e *ConnectionError) Error() string { return e.Detail }

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// FetchError is returned when preview or history retrieval fails, either on
// the wire (Status 0) or with a non-2xx response.
type FetchError struct {
	Status int
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
