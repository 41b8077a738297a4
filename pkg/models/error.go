package models

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	BadRequestError    ErrorCode = "BadRequest"
	InternalError      ErrorCode = "InternalError"
	NotFoundError      ErrorCode = "NotFound"
	ServiceUnavailable ErrorCode = "ServiceUnavailable"
	ValidationFailed   ErrorCode = "ValidationFailed"
	DatastoreFailure   ErrorCode = "DatastoreFailure"
)

// HasHTTPStatusCode is implemented by errors that know which HTTP status they
// should surface as.
type HasHTTPStatusCode interface {
	HTTPStatusCode() int
}

// HasCode is implemented by errors that carry a machine-readable code.
type HasCode interface {
	Code() ErrorCode
}

// BaseError is the error type surfaced through the public API. It carries a
// code and an HTTP status alongside the message, so the error-handling
// middleware can map it without string matching.
type BaseError struct {
	message        string
	hint           string
	code           ErrorCode
	httpStatusCode int
}

// NewBaseError creates a BaseError with only the message set.
func NewBaseError(format string, a ...any) *BaseError {
	return &BaseError{
		message: fmt.Sprintf(format, a...),
		code:    InternalError,
	}
}

// IsBaseError checks if an error is (or wraps) a BaseError.
func IsBaseError(err error) bool {
	var baseError *BaseError
	return errors.As(err, &baseError)
}

// WithHint sets a human-readable hint and returns the error for chaining.
func (e *BaseError) WithHint(hint string) *BaseError {
	e.hint = hint
	return e
}

// WithCode sets the machine-readable code and returns the error for chaining.
func (e *BaseError) WithCode(code ErrorCode) *BaseError {
	e.code = code
	return e
}

// WithHTTPStatusCode sets the HTTP status this error maps to and returns the
// error for chaining.
func (e *BaseError) WithHTTPStatusCode(statusCode int) *BaseError {
	e.httpStatusCode = statusCode
	return e
}

func (e *BaseError) Error() string   { return e.message }
func (e *BaseError) Hint() string    { return e.hint }
func (e *BaseError) Code() ErrorCode { return e.code }

// HTTPStatusCode returns the configured status code, falling back to a
// mapping from the error code when none was set explicitly.
func (e *BaseError) HTTPStatusCode() int {
	if e.httpStatusCode != 0 {
		return e.httpStatusCode
	}
	switch e.code {
	case BadRequestError, ValidationFailed:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
