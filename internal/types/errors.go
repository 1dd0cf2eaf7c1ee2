package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and repositories use these instead of
// hardcoded strings so the HTTP mapping stays in one place.
const (
	// Validation (400)
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidCadence  ErrorCode = "validation_invalid_cadence"
	ErrCodeValidationVideoNotPending ErrorCode = "validation_video_not_pending"

	// Auth (401)
	ErrCodeAuthSignatureInvalid ErrorCode = "auth_signature_invalid"
	ErrCodeAuthSignatureMissing ErrorCode = "auth_signature_missing"

	// Permission (403)
	ErrCodePermissionSubscriptionInactive ErrorCode = "permission_subscription_inactive"
	ErrCodePermissionSeriesInactive       ErrorCode = "permission_series_inactive"

	// Not Found (404)
	ErrCodeNotFoundSeries ErrorCode = "not_found_series"
	ErrCodeNotFoundVideo  ErrorCode = "not_found_video"
	ErrCodeNotFoundUser   ErrorCode = "not_found_user"

	// Conflict (409)
	ErrCodeConflictPendingVideo ErrorCode = "conflict_pending_video_exists"
	ErrCodeConflictStaleEvent   ErrorCode = "conflict_stale_subscription_event"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamRender     ErrorCode = "upstream_render_unavailable"
	ErrCodeUpstreamOAuth      ErrorCode = "upstream_oauth_unavailable"
	ErrCodeUpstreamEmail      ErrorCode = "upstream_email_unavailable"
	ErrCodeUpstreamRateLimit  ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All domain and handler
// errors are expressed as AppError to enable consistent formatting, HTTP
// status mapping, and error chain support.
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

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details
// that are safe to return to clients.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
