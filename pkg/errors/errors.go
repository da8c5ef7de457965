// Package errors carries typed API errors. Each Code maps to an HTTP status,
// a retry hint and the message clients see.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

// Generic codes.
const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Storefront and identity codes.
const (
	CodeEmptyCart            Code = "EMPTY_CART"
	CodeMissingContactInfo   Code = "MISSING_CONTACT_INFO"
	CodeMissingAddress       Code = "MISSING_ADDRESS"
	CodeSubmissionFailed     Code = "SUBMISSION_FAILED"
	CodeSubmissionInProgress Code = "SUBMISSION_IN_PROGRESS"
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeEmailInUse           Code = "EMAIL_IN_USE"
	CodeWeakPassword         Code = "WEAK_PASSWORD"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var catalog = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:  {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:     {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", true},
	CodeRateLimit:     {http.StatusTooManyRequests, false, "rate limit exceeded", false},
	CodeInternal:      {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:    {http.StatusServiceUnavailable, true, "dependency unavailable", true},

	CodeEmptyCart:            {http.StatusBadRequest, false, "cart is empty", false},
	CodeMissingContactInfo:   {http.StatusBadRequest, false, "customer name and phone are required", true},
	CodeMissingAddress:       {http.StatusBadRequest, false, "address is required for delivery", false},
	CodeSubmissionFailed:     {http.StatusServiceUnavailable, true, "order could not be submitted", false},
	CodeSubmissionInProgress: {http.StatusConflict, true, "an order submission is already in progress", false},
	CodeInvalidCredentials:   {http.StatusUnauthorized, false, "invalid email or password", false},
	CodeEmailInUse:           {http.StatusConflict, false, "email already registered", false},
	CodeWeakPassword:         {http.StatusBadRequest, false, "password is too weak", true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := catalog[code]; ok {
		return meta
	}
	return catalog[CodeInternal]
}

// Error is a coded error. The zero value and nil both read as internal.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf formats the message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil || e.code == "" {
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

// WithDetails sets client-visible details; they are only sent for codes
// whose metadata allows it.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code(), e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code(), e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// HTTPStatus maps any error to a status; untyped errors are 500.
func HTTPStatus(err error) int {
	return MetadataFor(As(err).Code()).HTTPStatus
}
