// Package apperrors defines the error taxonomy returned by services and the
// single boundary that turns errors into HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an AppError.
type Code string

const (
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeBadRequest:   http.StatusBadRequest,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeNotFound:     http.StatusNotFound,
	CodeConflict:     http.StatusConflict,
	CodeInternal:     http.StatusInternalServerError,
}

// AppError is an error with a client-facing message and an HTTP status.
type AppError struct {
	Code    Code
	Message string
	// Fields maps request field names to validation messages.
	Fields map[string]string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error.
func (e *AppError) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Is matches any AppError with the same code, so callers can write
// errors.Is(err, apperrors.ErrNotFound).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Message == "" && t.Code == e.Code
}

// Sentinels for errors.Is comparisons against a code.
var (
	ErrBadRequest   = &AppError{Code: CodeBadRequest}
	ErrUnauthorized = &AppError{Code: CodeUnauthorized}
	ErrForbidden    = &AppError{Code: CodeForbidden}
	ErrNotFound     = &AppError{Code: CodeNotFound}
	ErrConflict     = &AppError{Code: CodeConflict}
)

func BadRequest(msg string) *AppError   { return &AppError{Code: CodeBadRequest, Message: msg} }
func Unauthorized(msg string) *AppError { return &AppError{Code: CodeUnauthorized, Message: msg} }
func Forbidden(msg string) *AppError    { return &AppError{Code: CodeForbidden, Message: msg} }
func NotFound(msg string) *AppError     { return &AppError{Code: CodeNotFound, Message: msg} }
func Conflict(msg string) *AppError     { return &AppError{Code: CodeConflict, Message: msg} }

// Internal wraps an unexpected failure.
func Internal(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: err}
}

// Validation is a BadRequest carrying per-field messages.
func Validation(msg string, fields map[string]string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: msg, Fields: fields}
}

// WithErr attaches a cause.
func (e *AppError) WithErr(err error) *AppError {
	e.Err = err
	return e
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
