// Package apperr defines the error taxonomy shared by the domain packages
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class on the wire.
type Code string

const (
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInvalidTransition Code = "INVALID_STATE_TRANSITION"
	CodeDuplicate         Code = "DUPLICATE"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeInternal          Code = "INTERNAL"
)

// Sentinels for errors.Is checks. Every typed error below unwraps to one.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrDuplicate         = errors.New("duplicate")
	ErrInternal          = errors.New("internal error")
)

// Error is a classified application error.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{sentinelFor(e.Code)}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// Status returns the HTTP status code for the error class.
func (e *Error) Status() int {
	return StatusFor(e.Code)
}

// TransitionError reports a change that the entity's state machine does
// not allow in its current state. An empty To means the entity itself was
// not changing state but its current state forbids the operation.
type TransitionError struct {
	Entity string
	ID     int64
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s %d is %s: %s", e.Entity, e.ID, e.From, e.Reason)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s %d %s: cannot transition from %s to %s", e.Entity, e.ID, e.Reason, e.From, e.To)
	}
	return fmt.Sprintf("%s %d: cannot transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Unauthorized means no valid session or API key was presented.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Forbidden means the caller is authenticated but may not act on the entity.
func Forbidden(format string, args ...any) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing or soft-deleted entity.
func NotFound(entity string, id int64) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

// Validation reports malformed input.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationFields reports malformed input with per-field details.
func ValidationFields(details map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: "invalid request", Details: details}
}

// Duplicate reports a uniqueness violation.
func Duplicate(format string, args ...any) *Error {
	return &Error{Code: CodeDuplicate, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, cause: cause}
}

// Transition builds a TransitionError.
func Transition(entity string, id int64, from, to string) *TransitionError {
	return &TransitionError{Entity: entity, ID: id, From: from, To: to}
}

// CodeOf classifies any error. Unknown errors are INTERNAL.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	var te *TransitionError
	if errors.As(err, &te) {
		return CodeInvalidTransition
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrDuplicate):
		return CodeDuplicate
	}
	return CodeInternal
}

// StatusFor maps an error class to its HTTP status.
func StatusFor(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeInvalidTransition, CodeDuplicate:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func sentinelFor(code Code) error {
	switch code {
	case CodeUnauthorized:
		return ErrUnauthorized
	case CodeForbidden:
		return ErrForbidden
	case CodeNotFound:
		return ErrNotFound
	case CodeValidation:
		return ErrValidation
	case CodeInvalidTransition:
		return ErrInvalidTransition
	case CodeDuplicate:
		return ErrDuplicate
	default:
		return ErrInternal
	}
}
