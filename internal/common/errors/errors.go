// Package errors provides standardized error handling for the query pipeline.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Routing / source errors. Upstream failures are never fatal to a
	// request: the router converts them to empty results and records them.
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeSearchTimeout       ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeSearchQueryFailed   ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeIndexNotFound       ErrorCode = "INDEX_NOT_FOUND"

	// Extraction errors.
	ErrCodeAmbiguousExtraction ErrorCode = "AMBIGUOUS_EXTRACTION"
	ErrCodeTextGenTimeout      ErrorCode = "TEXTGEN_TIMEOUT"
	ErrCodeTextGenFailed       ErrorCode = "TEXTGEN_FAILED"

	// Access control. The only error surfaced to the user as a terminal
	// outcome rather than degraded into an empty result.
	ErrCodeAccessDenied ErrorCode = "ACCESS_DENIED"

	// Configuration errors.
	ErrCodeConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"

	// Persistence errors.
	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDirectoryLoadFailed  ErrorCode = "DIRECTORY_LOAD_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// New builds a StandardError with the current timestamp.
func New(code ErrorCode, message string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryable(code),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap builds a StandardError carrying the underlying error text as details.
func Wrap(code ErrorCode, message string, err error) *StandardError {
	se := New(code, message)
	if err != nil {
		se.Details = err.Error()
	}
	return se
}

// IsRetryable reports whether a code represents a transient condition.
func IsRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeUpstreamUnavailable, ErrCodeSearchTimeout, ErrCodeTextGenTimeout,
		ErrCodeDatabaseInsertFailed, ErrCodeNotificationSendFailed:
		return true
	}
	return false
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeUpstreamUnavailable, ErrCodeSearchTimeout, ErrCodeSearchQueryFailed, ErrCodeIndexNotFound:
		return "upstream"
	case ErrCodeAmbiguousExtraction, ErrCodeTextGenTimeout, ErrCodeTextGenFailed:
		return "extraction"
	case ErrCodeAccessDenied:
		return "access"
	case ErrCodeConfigurationMissing, ErrCodeConfigurationInvalid:
		return "configuration"
	case ErrCodeDatabaseInsertFailed, ErrCodeDirectoryLoadFailed:
		return "persistence"
	case ErrCodeNotificationSendFailed:
		return "notification"
	}
	return "internal"
}
