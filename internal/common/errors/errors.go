// Package errors provides the standardized error type used across the
// assistant pipeline and its HTTP host.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Model / extraction
	ErrCodeIntentClassificationFailed ErrorCode = "INTENT_CLASSIFICATION_FAILED"
	ErrCodeLLMTimeout                 ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMCompletionFailed        ErrorCode = "LLM_COMPLETION_FAILED"
	ErrCodeExtractionSchemaViolation  ErrorCode = "EXTRACTION_SCHEMA_VIOLATION"

	// Pipeline / programmer errors
	ErrCodeUnknownAction       ErrorCode = "UNKNOWN_ACTION"
	ErrCodeDuplicateAction     ErrorCode = "DUPLICATE_ACTION"
	ErrCodeInvalidDraft        ErrorCode = "INVALID_DRAFT"
	ErrCodeClarifyLimitReached ErrorCode = "CLARIFY_LIMIT_REACHED"
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"

	// Domain
	ErrCodeEntityNotFound        ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeBusinessRuleViolation ErrorCode = "BUSINESS_RULE_VIOLATION"

	// Storage
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"

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

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is keeps working on
// sentinel errors wrapped by a constructor.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e after adding one metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

func NewIntentClassificationFailedError(err error) *StandardError {
	return newError(ErrCodeIntentClassificationFailed, "Intent classification failed", err, true)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model call timed out", err, true)
}

func NewLLMCompletionFailedError(err error) *StandardError {
	return newError(ErrCodeLLMCompletionFailed, "Language model completion failed", err, true)
}

// NewExtractionSchemaViolationError wraps a schema violation reported for the
// output of an action's extraction call.
func NewExtractionSchemaViolationError(action string, err error) *StandardError {
	return newError(ErrCodeExtractionSchemaViolation, "Model output violates the extraction schema", err, false).
		WithMetadata("action", action)
}

func NewUnknownActionError(action string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownAction,
		Message:   "Unknown action",
		Details:   fmt.Sprintf("action: %s", action),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDuplicateActionError(action string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateAction,
		Message:   "Action registered twice",
		Details:   fmt.Sprintf("action: %s", action),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidDraftError(action string, err error) *StandardError {
	return newError(ErrCodeInvalidDraft, "Draft cannot be decoded", err, false).
		WithMetadata("action", action)
}

func NewClarifyLimitReachedError(action string, rounds int) *StandardError {
	return &StandardError{
		Code:      ErrCodeClarifyLimitReached,
		Message:   "Too many clarification rounds",
		Details:   fmt.Sprintf("action: %s, rounds: %d", action, rounds),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEntityNotFoundError(kind, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBusinessRuleViolation,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err, true)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error", err, true).
		WithMetadata("operation", operation)
}

func NewQueryTimeoutError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", err, true).
		WithMetadata("operation", operation)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Cache unavailable", err, true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// ==========================
// 3. Helpers
// ==========================

// As returns the first StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or
// INTERNAL_ERROR when there is none.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := As(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Normalize always returns a StandardError for err.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// IsDomainError reports whether err is a user-facing domain failure rather
// than an infrastructure or programmer error.
func IsDomainError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeEntityNotFound, ErrCodeBusinessRuleViolation, ErrCodeInvalidDraft:
		return true
	}
	return false
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeLLMCompletionFailed,
		ErrCodeIntentClassificationFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeLLMTimeout:
		return 2

	case ErrCodeCacheUnavailable:
		return 1

	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "INTENT") || strings.Contains(codeStr, "EXTRACTION"):
		return "AI"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "ACTION") || strings.Contains(codeStr, "DRAFT") || strings.Contains(codeStr, "CLARIFY"):
		return "PIPELINE"
	case strings.Contains(codeStr, "ENTITY") || strings.Contains(codeStr, "BUSINESS"):
		return "DOMAIN"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the status written by the HTTP host.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeInvalidDraft, ErrCodeUnknownAction:
		return http.StatusBadRequest
	case ErrCodeEntityNotFound:
		return http.StatusNotFound
	case ErrCodeBusinessRuleViolation, ErrCodeClarifyLimitReached:
		return http.StatusUnprocessableEntity
	case ErrCodeLLMTimeout, ErrCodeQueryTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeDatabaseConnectionFailed, ErrCodeCacheUnavailable, ErrCodeLLMCompletionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
