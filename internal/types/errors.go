package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingParam    ErrorCode = "validation_missing_parameter"
	ErrCodeValidationInvalidParam    ErrorCode = "validation_invalid_parameter"
	ErrCodeValidationInvalidWindow   ErrorCode = "validation_invalid_period_window"
	ErrCodeValidationInvalidMethod   ErrorCode = "validation_invalid_metering_method"
	ErrCodeValidationInvalidCount    ErrorCode = "validation_invalid_metering_count"
	ErrCodeValidationInvalidEmail    ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidBody     ErrorCode = "validation_invalid_request_body"
	ErrCodeValidationInvalidTimezone ErrorCode = "validation_invalid_timezone"

	// Auth (401)
	ErrCodeAuthTokenMissing        ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid        ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenExpired        ErrorCode = "auth_token_expired"
	ErrCodeAuthCodeInvalid         ErrorCode = "auth_code_invalid"
	ErrCodeAuthRefreshTokenMissing ErrorCode = "auth_refresh_token_missing"
	ErrCodeAuthRefreshTokenInvalid ErrorCode = "auth_refresh_token_invalid"

	// Permission (403)
	ErrCodePermissionTenantMismatch ErrorCode = "permission_tenant_mismatch"
	ErrCodePermissionRole           ErrorCode = "permission_role_insufficient"

	// Not Found (404)
	ErrCodeNotFoundPlan       ErrorCode = "not_found_pricing_plan"
	ErrCodeNotFoundTenant     ErrorCode = "not_found_tenant"
	ErrCodeNotFoundUser       ErrorCode = "not_found_user"
	ErrCodeNotFoundMeterUnit  ErrorCode = "not_found_metering_unit"
	ErrCodeNotFoundInvitation ErrorCode = "not_found_invitation"

	// Conflict (409)
	ErrCodeConflictEmail ErrorCode = "conflict_email_exists"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeInternalComputation ErrorCode = "internal_billing_computation_failed"
	ErrCodeUpstreamPlatform    ErrorCode = "upstream_platform_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
