// errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Stable error codes returned in the caller-visible envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeAuthorization      = "AUTHORIZATION_ERROR"
	CodeTenantRequired     = "TENANT_REQUIRED"
	CodeTenantAccessDenied = "TENANT_ACCESS_DENIED"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	CodeInternal           = "INTERNAL_ERROR"
)

// GatewayError is the uniform error shape surfaced by the gateway. Internal
// detail stays in Err and is logged server-side, never serialized.
type GatewayError struct {
	Code    string
	Message string
	Status  int
	Backend string    // set for upstream failures
	ResetAt time.Time // set for rate-limit rejections
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func Validation(message string) *GatewayError {
	return &GatewayError{Code: CodeValidation, Message: message, Status: http.StatusBadRequest}
}

func Authentication(message string, err error) *GatewayError {
	return &GatewayError{Code: CodeAuthentication, Message: message, Status: http.StatusUnauthorized, Err: err}
}

func Authorization(message string) *GatewayError {
	return &GatewayError{Code: CodeAuthorization, Message: message, Status: http.StatusForbidden}
}

func TenantRequired() *GatewayError {
	return &GatewayError{Code: CodeTenantRequired, Message: "no tenant resolved for request", Status: http.StatusBadRequest}
}

func TenantAccessDenied(tenantID string) *GatewayError {
	return &GatewayError{
		Code:    CodeTenantAccessDenied,
		Message: fmt.Sprintf("no grant for tenant %s", tenantID),
		Status:  http.StatusForbidden,
	}
}

func NotFound(message string) *GatewayError {
	return &GatewayError{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

func RateLimited(resetAt time.Time) *GatewayError {
	return &GatewayError{
		Code:    CodeRateLimited,
		Message: "rate limit exceeded",
		Status:  http.StatusTooManyRequests,
		ResetAt: resetAt,
	}
}

// BackendUnavailable covers breaker-open rejections and upstream 5xx or
// network failures. breakerState travels in the message for observability.
func BackendUnavailable(backend, breakerState string, err error) *GatewayError {
	return &GatewayError{
		Code:    CodeBackendUnavailable,
		Message: fmt.Sprintf("backend %s unavailable (breaker %s)", backend, breakerState),
		Status:  http.StatusServiceUnavailable,
		Backend: backend,
		Err:     err,
	}
}

func GatewayTimeout(backend string, err error) *GatewayError {
	return &GatewayError{
		Code:    CodeGatewayTimeout,
		Message: fmt.Sprintf("backend %s timed out", backend),
		Status:  http.StatusGatewayTimeout,
		Backend: backend,
		Err:     err,
	}
}

func Internal(err error) *GatewayError {
	return &GatewayError{Code: CodeInternal, Message: "internal error", Status: http.StatusInternalServerError, Err: err}
}

// From normalizes any error into a GatewayError. Unknown errors become
// opaque internal errors so upstream detail never leaks to the caller.
func From(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	return Internal(err)
}
