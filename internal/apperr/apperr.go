// Package apperr defines the typed failures surfaced by the load balancer
// and their mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// CodeValidation means a registration payload or path parameter is malformed.
	CodeValidation = "validation_error"
	// CodeDuplicateEndpoint means an application with the same endpoint is already registered.
	CodeDuplicateEndpoint = "duplicate_endpoint"
	// CodeNotFound means the referenced application is not registered.
	CodeNotFound = "not_found"
	// CodeNoHealthyApplication means the scheduler found an empty healthy set.
	CodeNoHealthyApplication = "no_healthy_application"
	// CodeTimeout means an outbound call exceeded its deadline.
	CodeTimeout = "timeout"
	// CodeDownstream means an outbound call completed with a failure status.
	CodeDownstream = "downstream_error"
	// CodeInvalidResponse means a downstream answered with a body that is not JSON.
	CodeInvalidResponse = "invalid_response"
	// CodeInternal means an unexpected failure inside the load balancer.
	CodeInternal = "internal_error"
)

// Error is a typed load balancer failure.
type Error struct {
	// Code is a machine-readable code.
	Code string `json:"code"`
	// Message is a human-readable message.
	Message string `json:"message"`
	// DownstreamStatus is the status returned by the downstream, for CodeDownstream.
	DownstreamStatus int `json:"downstreamStatus,omitempty"`
	// Details carries structured context such as field validation errors.
	Details any `json:"details,omitempty"`
	// Inner is never shown to API consumers.
	Inner error `json:"-"`
}

// New creates a new Error.
func New(code, message string, inner error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Inner:   inner,
	}
}

func NewValidationError(message string, details any) *Error {
	e := New(CodeValidation, message, nil)
	e.Details = details
	return e
}

func NewDuplicateEndpointError(endpoint string) *Error {
	return New(CodeDuplicateEndpoint, fmt.Sprintf("application %s is already registered", endpoint), nil)
}

func NewNotFoundError(message string) *Error {
	return New(CodeNotFound, message, nil)
}

func NewNoHealthyApplicationError() *Error {
	return New(CodeNoHealthyApplication, "no healthy downstream application available", nil)
}

func NewTimeoutError(target string, inner error) *Error {
	return New(CodeTimeout, fmt.Sprintf("%s failed to respond within the expected duration", target), inner)
}

func NewDownstreamError(target string, status int) *Error {
	e := New(CodeDownstream, fmt.Sprintf("%s responded with status %d", target, status), nil)
	e.DownstreamStatus = status
	return e
}

func NewInvalidResponseError(target string, inner error) *Error {
	return New(CodeInvalidResponse, fmt.Sprintf("%s returned an invalid response", target), inner)
}

func NewInternalError(message string, inner error) *Error {
	if e := ToError(inner); e != nil {
		return e
	}
	return New(CodeInternal, message, inner)
}

func (e *Error) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Message, e.Inner)
	}
	return fmt.Sprintf("%s %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// ToError returns the *Error in err's chain, or nil.
func ToError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Code returns the code of err, or "" if it is not an *Error.
func Code(err error) string {
	if e := ToError(err); e != nil {
		return e.Code
	}
	return ""
}

func Is(err error, code string) bool {
	return Code(err) == code
}

func IsValidation(err error) bool { return Is(err, CodeValidation) }

func IsDuplicateEndpoint(err error) bool { return Is(err, CodeDuplicateEndpoint) }

func IsNotFound(err error) bool { return Is(err, CodeNotFound) }

func IsNoHealthyApplication(err error) bool { return Is(err, CodeNoHealthyApplication) }

func IsTimeout(err error) bool { return Is(err, CodeTimeout) }

func IsDownstream(err error) bool { return Is(err, CodeDownstream) }

var statusCodes = map[string]int{
	CodeValidation:           http.StatusBadRequest,
	CodeDuplicateEndpoint:    http.StatusUnprocessableEntity,
	CodeNotFound:             http.StatusNotFound,
	CodeNoHealthyApplication: http.StatusServiceUnavailable,
	CodeTimeout:              http.StatusGatewayTimeout,
	CodeDownstream:           http.StatusBadGateway,
	CodeInvalidResponse:      http.StatusBadGateway,
	CodeInternal:             http.StatusInternalServerError,
}

// StatusCode maps err to the HTTP status returned to clients.
// Unknown errors map to 500.
func StatusCode(err error) int {
	if status, ok := statusCodes[Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
