// Package domainerrors defines the error codes that cross the service boundary.
//
// Services return *Error values carrying a Code; transport layers translate the
// code into a status via ToHTTPStatus. Stores never construct these directly, they
// return pkg/platform/sentinel errors which services map to a code.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of failure visible to API clients.
type Code string

const (
	CodeBadRequest           Code = "bad_request"
	CodeInvalidInput         Code = "invalid_input"
	CodeValidation           Code = "validation_error"
	CodeInvalidInvitation    Code = "invalid_invitation"
	CodeDuplicateIdentity    Code = "duplicate_identity"
	CodeAuthenticationFailed Code = "authentication_failed"
	CodeUnauthorized         Code = "unauthorized"
	CodeForbidden            Code = "forbidden"
	CodeSelfRatingForbidden  Code = "self_rating_forbidden"
	CodeNotFound             Code = "not_found"
	CodeConflict             Code = "conflict"
	CodeRateLimited          Code = "rate_limit_exceeded"
	CodeTemporaryFailure     Code = "temporary_failure"
	CodeTimeout              Code = "timeout"
	CodeInvariantViolation   Code = "invariant_violation"
	CodeInternal             Code = "internal_error"
)

// Error is a coded domain error. Two errors match under errors.Is when their code
// and message are equal.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better as a predicate.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost domain error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status returned to clients.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeValidation, CodeInvalidInvitation:
		return http.StatusBadRequest
	case CodeAuthenticationFailed, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeSelfRatingForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateIdentity, CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTemporaryFailure:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
