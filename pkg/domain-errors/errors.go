// Package domainerrors carries coded errors across layers. Services return
// these so callers (and the HTTP layer) can determine the error kind with
// HasCode instead of inspecting message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a domain error.
type Code string

const (
	// CodeValidation: caller input failed a domain rule (e.g. empty name).
	CodeValidation Code = "validation_error"
	// CodeNotFound: the referenced applicant, application, or attempt does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvariantViolation: the operation would break a structural invariant.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInvalidTransition: the lifecycle does not allow the transition from its current state.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeUnknownMethod: the method id is not part of the registered method set.
	CodeUnknownMethod Code = "unknown_method"

	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error. Err is optional and kept for unwrapping.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the outermost code from err.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// MessageOf returns the message of the outermost coded error, or err.Error().
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
