// Package errors provides structured error handling for the application
// Following enterprise patterns for error management and observability
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

// Error codes surfaced by the planning pipeline
const (
	// Client errors (4xx)
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeRateLimit       ErrorCode = "RATE_LIMIT"

	// Server errors (5xx)
	CodeInternal   ErrorCode = "INTERNAL_ERROR"
	CodeDBError    ErrorCode = "DB_ERROR"
	CodeAgentError ErrorCode = "AGENT_ERROR"

	// Structural errors: never retried automatically, inputs must change
	CodeInsufficientCandidates ErrorCode = "INSUFFICIENT_CANDIDATES"
	CodeConfigInvalid          ErrorCode = "CONFIG_INVALID"
	CodeAIBudgetExceeded       ErrorCode = "AI_BUDGET_EXCEEDED"
	CodeDBCoverageTooLow       ErrorCode = "DB_COVERAGE_TOO_LOW"
)

// MaxLedgerMessage bounds error messages written to the run ledger.
const MaxLedgerMessage = 512

// AppError represents an application error with structured information
type AppError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Cause    error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimit, CodeAIBudgetExceeded:
		return http.StatusTooManyRequests
	case CodeInsufficientCandidates, CodeDBCoverageTooLow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Retriable reports whether a caller may retry the same request unchanged.
// Structural and config errors require changed inputs and are never retried.
func (e *AppError) Retriable() bool {
	switch e.Code {
	case CodeInsufficientCandidates, CodeConfigInvalid, CodeAIBudgetExceeded, CodeDBCoverageTooLow, CodeValidationError:
		return false
	default:
		return true
	}
}

// LedgerMessage returns the error text truncated for run ledger storage.
func (e *AppError) LedgerMessage() string {
	msg := e.Error()
	if len(msg) > MaxLedgerMessage {
		return msg[:MaxLedgerMessage]
	}
	return msg
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Predefined error constructors for common scenarios

// NewValidationError creates a malformed-request error
func NewValidationError(details string) *AppError {
	return NewAppError(CodeValidationError, "Request validation failed", details)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), "")
}

// NewConflictError signals a concurrent generation already in progress.
func NewConflictError(userID string) *AppError {
	return NewAppError(
		CodeConflict,
		"Plan generation already in progress",
		"Another generation run is active for this user",
	).WithMetadata("user_id", userID)
}

// NewRateLimitError signals the rolling-hour generation quota was hit.
func NewRateLimitError(limit int) *AppError {
	return NewAppError(
		CodeRateLimit,
		"Generation rate limit exceeded",
		fmt.Sprintf("At most %d generation runs are allowed per hour", limit),
	).WithMetadata("limit", limit)
}

// NewInsufficientCandidatesError signals that no combination of database and
// generative content could fill the plan. Carries the unfilled-slot count.
func NewInsufficientCandidatesError(unfilledSlots int) *AppError {
	return NewAppError(
		CodeInsufficientCandidates,
		"Not enough valid candidates to complete the plan",
		fmt.Sprintf("%d slot(s) could not be filled", unfilledSlots),
	).WithMetadata("unfilled_slots", unfilledSlots)
}

// NewDatabaseError creates a persistence error
func NewDatabaseError(operation string, cause error) *AppError {
	return NewAppError(
		CodeDBError,
		"Database operation failed",
		fmt.Sprintf("Failed to %s", operation),
	).WithCause(cause)
}

// NewAgentError creates a generative/downstream call error
func NewAgentError(service string, cause error) *AppError {
	return NewAppError(
		CodeAgentError,
		"Downstream agent call failed",
		fmt.Sprintf("Failed to communicate with %s", service),
	).WithCause(cause)
}

// NewConfigInvalidError creates a configuration error
func NewConfigInvalidError(details string) *AppError {
	return NewAppError(CodeConfigInvalid, "Invalid configuration", details)
}

// NewAIBudgetExceededError signals the hourly generative budget is spent.
func NewAIBudgetExceededError() *AppError {
	return NewAppError(
		CodeAIBudgetExceeded,
		"AI budget exceeded",
		"The hourly generative call budget has been exhausted",
	)
}

// NewDBCoverageTooLowError signals the db-sourced share fell below the floor.
func NewDBCoverageTooLowError(coverage, floor float64) *AppError {
	return NewAppError(
		CodeDBCoverageTooLow,
		"Database coverage below configured floor",
		fmt.Sprintf("achieved %.0f%%, required %.0f%%", coverage*100, floor*100),
	).WithMetadata("coverage", coverage).WithMetadata("floor", floor)
}

// Utility functions

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewAppError(CodeInternal, message, "").WithCause(err)
}

// Is checks if an error is of a specific error code
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternal
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// ToErrorResponse converts an AppError to an API error response
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Metadata:  err.Metadata,
			RequestID: requestID,
			Timestamp: fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
}
