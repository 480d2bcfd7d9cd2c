// Package errors provides standardized error handling for the prediction pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodePredictionAPIError        ErrorCode = "PREDICTION_API_ERROR"
	ErrCodePredictionValidationError ErrorCode = "PREDICTION_VALIDATION_FAILED"
	ErrCodePredictionTimeout         ErrorCode = "PREDICTION_TIMEOUT"
	ErrCodePredictionUnavailable     ErrorCode = "PREDICTION_SERVICE_UNAVAILABLE"

	ErrCodeStudentNotFound          ErrorCode = "STUDENT_NOT_FOUND"
	ErrCodePredictionResultNotFound ErrorCode = "PREDICTION_RESULT_NOT_FOUND"

	ErrCodeOcrExtractionFailed ErrorCode = "OCR_EXTRACTION_FAILED"
	ErrCodeOcrBatchEmpty       ErrorCode = "OCR_BATCH_EMPTY"
	ErrCodeOcrResultNotFound   ErrorCode = "OCR_RESULT_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeTransactionFailed        ErrorCode = "TRANSACTION_FAILED"

	ErrCodeCatalogLookupFailed ErrorCode = "CATALOG_LOOKUP_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeEventPayloadInvalid ErrorCode = "EVENT_PAYLOAD_INVALID"
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

// ==========================
// 2. Error Constructors
// ==========================

// NewPredictionAPIError creates an error for a non-2xx predictor response.
// 5xx responses are retryable, other statuses are not.
func NewPredictionAPIError(status int, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionAPIError,
		Message:   fmt.Sprintf("prediction API error (status %d)", status),
		Details:   details,
		Retryable: status >= 500,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictionValidationError creates a non-retryable schema rejection error
// (HTTP 422 from the predictor). Details cite the offending field path and message.
func NewPredictionValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionValidationError,
		Message:   "prediction input rejected by remote schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictionTimeoutError creates a retryable timeout error.
func NewPredictionTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionTimeout,
		Message:   "prediction API call timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictionUnavailableError creates a retryable transport-level error.
func NewPredictionUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionUnavailable,
		Message:   "prediction service unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStudentNotFoundError creates a non-retryable not-found error.
func NewStudentNotFoundError(studentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStudentNotFound,
		Message:   "Student not found",
		Details:   fmt.Sprintf("studentId: %s", studentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictionResultNotFoundError creates a non-retryable not-found error.
func NewPredictionResultNotFoundError(studentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionResultNotFound,
		Message:   "No completed prediction result for student",
		Details:   fmt.Sprintf("studentId: %s", studentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOcrExtractionFailedError creates a retryable extraction error.
func NewOcrExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOcrExtractionFailed,
		Message:   "OCR score extraction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOcrBatchEmptyError creates a non-retryable precondition error.
func NewOcrBatchEmptyError(studentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOcrBatchEmpty,
		Message:   "No completed OCR results available for student",
		Details:   fmt.Sprintf("studentId: %s", studentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOcrResultNotFoundError creates a non-retryable not-found error.
func NewOcrResultNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOcrResultNotFound,
		Message:   "OCR result not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransactionFailedError creates a retryable transaction error.
func NewTransactionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionFailed,
		Message:   "Database transaction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogLookupFailedError creates a retryable catalog lookup error.
func NewCatalogLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogLookupFailed,
		Message:   "Program catalog lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventPayloadInvalidError creates a non-retryable event payload error.
func NewEventPayloadInvalidError(eventName, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventPayloadInvalid,
		Message:   fmt.Sprintf("Malformed payload for event '%s'", eventName),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether an error may be retried. Unknown error types
// (plain transport errors, wrapped I/O failures) default to retryable; only a
// StandardError can opt out.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// IsNotFound reports whether an error is one of the typed not-found conditions.
func IsNotFound(err error) bool {
	var stdErr *StandardError
	if !errors.As(err, &stdErr) {
		return false
	}
	switch stdErr.Code {
	case ErrCodeStudentNotFound, ErrCodePredictionResultNotFound, ErrCodeOcrResultNotFound:
		return true
	}
	return false
}

// CodeOf extracts the error code, or "INTERNAL_ERROR" for foreign errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "INTERNAL_ERROR"
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PREDICTION"):
		return "PREDICTION"
	case strings.Contains(codeStr, "OCR"):
		return "OCR"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "TRANSACTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "EVENT"):
		return "EVENT"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
