package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// Checkout and ledger outcomes.
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeInvalidMovement    Code = "INVALID_MOVEMENT"
	CodeCommitStepFailed   Code = "COMMIT_STEP_FAILED"
	CodePreconditionFailed Code = "PRECONDITION_FAILED"
)

// Metadata drives how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, public string, details, retryable bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	// meta(status, public message, details allowed, retryable)
	CodeValidation:         meta(http.StatusBadRequest, "validation failed", true, false),
	CodeUnauthorized:       meta(http.StatusUnauthorized, "authentication required", false, false),
	CodeForbidden:          meta(http.StatusForbidden, "access denied", false, false),
	CodeNotFound:           meta(http.StatusNotFound, "resource not found", true, false),
	CodeConflict:           meta(http.StatusConflict, "conflict detected", false, false),
	CodeIdempotency:        meta(http.StatusConflict, "idempotency key reused", true, false),
	CodeRateLimit:          meta(http.StatusTooManyRequests, "rate limit exceeded", false, false),
	CodeInternal:           meta(http.StatusInternalServerError, "internal server error", false, true),
	CodeDependency:         meta(http.StatusServiceUnavailable, "dependency unavailable", true, true),
	CodeInsufficientStock:  meta(http.StatusConflict, "insufficient stock", true, false),
	CodeInvalidMovement:    meta(http.StatusUnprocessableEntity, "invalid inventory movement", true, false),
	CodeCommitStepFailed:   meta(http.StatusBadGateway, "checkout could not be completed; manual reconciliation required", true, false),
	CodePreconditionFailed: meta(http.StatusPreconditionFailed, "checkout preconditions not met", true, false),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed error every layer returns. The code decides the HTTP
// status; message is for logs and, when the code allows it, for clients.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is/As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code is CodeInternal for a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code, so errors.Is(err, New(CodeNotFound, ""))
// works as a code check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		if typed, ok := err.(*Error); ok && typed.code == code {
			return true
		}
		err = stdErrors.Unwrap(err)
	}
	return false
}
