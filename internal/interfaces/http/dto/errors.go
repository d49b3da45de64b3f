package dto

import (
	"errors"
	"net/http"

	"github.com/erp/stocksync/internal/domain/integration"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeInvalidSignature is used when a webhook HMAC does not verify
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
)

// Sync error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeTenantNotConfigured = "ERR_TENANT_NOT_CONFIGURED"
	ErrCodeTenantSyncDisabled  = "ERR_TENANT_SYNC_DISABLED"
	ErrCodeUnsupportedTopic    = "ERR_UNSUPPORTED_TOPIC"
	ErrCodeInvalidPayload      = "ERR_INVALID_PAYLOAD"
	ErrCodeMappingNotFound     = "ERR_MAPPING_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	// ErrCodeUnavailable covers retryable failures; the caller should try again
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
	// ErrCodePlatformRejected is used when the platform refused a write
	ErrCodePlatformRejected = "ERR_PLATFORM_REJECTED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeInvalidSignature: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeTenantNotConfigured: http.StatusNotFound,
	ErrCodeTenantSyncDisabled:  http.StatusConflict,
	ErrCodeUnsupportedTopic:    http.StatusBadRequest,
	ErrCodeInvalidPayload:      http.StatusBadRequest,
	ErrCodeMappingNotFound:     http.StatusUnprocessableEntity,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeUnavailable:         http.StatusServiceUnavailable,
	ErrCodePlatformRejected:    http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromError classifies an error from the sync services into an error code.
// Order matters: a configuration error wrapping a platform rejection is
// reported as configuration, and anything retryable as unavailable.
func FromError(err error) string {
	var validation *integration.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, integration.ErrInvalidSignature):
		return ErrCodeInvalidSignature
	case errors.Is(err, integration.ErrTenantNotConfigured):
		return ErrCodeTenantNotConfigured
	case errors.Is(err, integration.ErrTenantSyncDisabled):
		return ErrCodeTenantSyncDisabled
	case integration.IsConfigurationError(err):
		return ErrCodeConflict
	case integration.IsRetryable(err):
		return ErrCodeUnavailable
	case errors.Is(err, integration.ErrUnsupportedTopic):
		return ErrCodeUnsupportedTopic
	case errors.Is(err, integration.ErrPlatformInvalidResponse):
		return ErrCodeInvalidPayload
	case errors.Is(err, integration.ErrMappingNotFound):
		return ErrCodeMappingNotFound
	case errors.Is(err, integration.ErrPlatformRequestFailed):
		return ErrCodePlatformRejected
	case errors.As(err, &validation):
		return ErrCodeValidation
	}
	return ErrCodeInternal
}
