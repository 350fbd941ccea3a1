// Package apperr defines the error taxonomy: a fixed set of Kinds, each
// carrying an HTTP-status hint, so the api layer never has to guess how
// to report a failure.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for logging, retry decisions, and HTTP mapping.
type Kind string

const (
	Validation        Kind = "validation"
	NotFound          Kind = "not_found"
	Overloaded        Kind = "overloaded"
	Draining          Kind = "draining"
	Timeout           Kind = "timeout"
	Browser           Kind = "browser"
	ContentExtraction Kind = "content_extraction"
	ResponseTooLarge  Kind = "response_too_large"
	Cancelled         Kind = "cancelled"
	Internal          Kind = "internal"
)

// httpStatus maps each Kind to its HTTP status hint.
// Cancelled is a 499-class condition with no standard Go constant; the API
// layer surfaces it as 400 instead.
var httpStatus = map[Kind]int{
	Validation:        http.StatusBadRequest,
	NotFound:          http.StatusNotFound,
	Overloaded:        http.StatusServiceUnavailable,
	Draining:          http.StatusServiceUnavailable,
	Timeout:           http.StatusGatewayTimeout,
	Browser:           http.StatusBadGateway,
	ContentExtraction: http.StatusUnprocessableEntity,
	ResponseTooLarge:  http.StatusRequestEntityTooLarge,
	Cancelled:         http.StatusBadRequest,
	Internal:          http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status hint for a Kind, defaulting to 500 for
// an unrecognized kind.
func HTTPStatus(k Kind) int {
	if s, ok := httpStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the taxonomy's concrete error type. It implements Unwrap so
// errors.Is/As keep working through the wrap.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches validation-violation details and returns the receiver.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from err, falling back to a generic Internal
// wrapper when err isn't already one of ours.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(Internal, err.Error(), err)
}

// KindOf returns the Kind of err, or Internal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
