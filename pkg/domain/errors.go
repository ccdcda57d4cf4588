// Package domain holds types shared by the quote and claim domain models:
// the code-carrying error type and the stable error codes raised by
// aggregate operations.
package domain

import (
	"fmt"
	"net/http"
)

// Stable error codes raised by domain operations. Codes are part of the
// public contract: HTTP-layer callers map them onto responses and clients
// switch on them, so they must never change meaning.
const (
	CodeQuoteAlreadySubmitted      = "quote.already.submitted"
	CodeQuoteRequiresFormData      = "quote.submission.requires.form.data"
	CodeOperationOnSubmittedQuote  = "cannot.perform.operation.on.submitted.quote"
	CodeOperationOnIssuedPolicy    = "cannot.perform.operation.on.issued.policy"
	CodeQuoteNotFound              = "quote.not.found"
	CodePolicyNotIssued            = "policy.not.issued"
	CodePolicyAlreadyIssued        = "policy.already.issued"
	CodeQuoteNumberRequired        = "quote.number.required"
	CodeCalculationResultRequired  = "quote.calculation.result.required"
	CodeCustomerDetailsRequired    = "quote.customer.details.required"
	CodeQuoteTypeInvalidForAction  = "quote.type.invalid.for.operation"
	CodeQuoteDiscarded             = "quote.discarded"
	CodeClaimActionNotPermitted    = "claim.action.not.permitted.for.state"
	CodeClaimNumberAlreadyAssigned = "claim.number.already.assigned"
	CodeClaimNumberNotAssigned     = "claim.number.not.assigned"
	CodeAggregateDeleted           = "aggregate.deleted"
)

// Error is a domain rule violation: a typed error carrying a stable string
// code and an HTTP status hint. These are always surfaced to the caller,
// never silently retried or swallowed.
type Error struct {
	Code       string
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is a domain error with the same code, so
// callers can match with errors.Is against a bare-code sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a domain error with an explicit status hint.
func NewError(code string, status int, format string, args ...any) *Error {
	return &Error{Code: code, HTTPStatus: status, Message: fmt.Sprintf(format, args...)}
}

// Invalid creates a 400-hinted domain error.
func Invalid(code, format string, args ...any) *Error {
	return NewError(code, http.StatusBadRequest, format, args...)
}

// NotFound creates a 404-hinted domain error.
func NotFound(code, format string, args ...any) *Error {
	return NewError(code, http.StatusNotFound, format, args...)
}

// Conflict creates a 409-hinted domain error.
func Conflict(code, format string, args ...any) *Error {
	return NewError(code, http.StatusConflict, format, args...)
}

// ErrCode returns a bare sentinel for errors.Is matching on a code.
func ErrCode(code string) *Error {
	return &Error{Code: code}
}
