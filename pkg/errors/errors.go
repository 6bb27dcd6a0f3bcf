// Package errors defines the error taxonomy for the reconciliation engine.
//
// Errors carry a category, a code, an optional suggestion and arbitrary
// context so that callers can decide between "nothing to do", "retry
// later" and "fail the run" without string matching.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryParse          ErrorCategory = "parse"
	CategoryStore          ErrorCategory = "store"
	CategoryMatching       ErrorCategory = "matching"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"

	// Store errors
	CodeNotFound          ErrorCode = "not_found"
	CodeAlreadyReconciled ErrorCode = "already_reconciled"
	CodeTxFailed          ErrorCode = "tx_failed"

	// Matching errors
	CodeInvalidRule ErrorCode = "invalid_rule"

	// Reconciliation errors
	CodeOutOfTolerance  ErrorCode = "out_of_tolerance"
	CodeNotPermitted    ErrorCode = "not_permitted"
	CodeProcessingError ErrorCode = "processing_error"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// EngineError is the base error type for all engine errors
type EngineError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *EngineError) WithSuggestion(suggestion string) *EngineError {
	e.Suggestion = suggestion
	return e
}

// GetExitCode returns an appropriate exit code for the error
func (e *EngineError) GetExitCode() int {
	switch e.Category {
	case CategoryConfiguration:
		return 2
	case CategoryParse:
		return 3
	case CategoryStore:
		return 4
	case CategoryMatching, CategoryReconciliation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new EngineError
func New(category ErrorCategory, code ErrorCode, message string) *EngineError {
	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with EngineError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err == nil {
		return nil
	}

	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, err error) *EngineError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s'", setting)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting via flags, environment or config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	result := build(err, CategoryConfiguration, code, message)
	return result.WithSuggestion(suggestion).WithContext("setting", setting)
}

// ParseError creates a parsing-related error for statement imports
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *EngineError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "check the data format and ensure it matches the expected structure"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	result := build(err, CategoryParse, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// StoreError creates a store-related error
func StoreError(code ErrorCode, operation string, err error) *EngineError {
	var message, suggestion string

	switch code {
	case CodeNotFound:
		message = fmt.Sprintf("record not found during %s", operation)
		suggestion = "verify the identifier and that the record was not removed"
	case CodeAlreadyReconciled:
		message = fmt.Sprintf("statement line already reconciled during %s", operation)
		suggestion = "another worker may have processed this line; no action needed"
	case CodeTxFailed:
		message = fmt.Sprintf("transaction failed during %s", operation)
		suggestion = "check store connectivity and retry on the next schedule"
	default:
		message = fmt.Sprintf("store error during %s", operation)
		suggestion = "check the store and try again"
	}

	result := build(err, CategoryStore, code, message)
	return result.WithSuggestion(suggestion).WithContext("operation", operation)
}

// MatchingError creates a matching-related error
func MatchingError(code ErrorCode, operation string, err error) *EngineError {
	message := fmt.Sprintf("matching error during %s", operation)
	suggestion := "check the reconcile model configuration"
	if code == CodeInvalidRule {
		message = fmt.Sprintf("invalid reconcile model encountered during %s", operation)
	}

	result := build(err, CategoryMatching, code, message)
	return result.WithSuggestion(suggestion).WithContext("operation", operation)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *EngineError {
	var message, suggestion string

	switch code {
	case CodeOutOfTolerance:
		message = fmt.Sprintf("candidates do not clear the tolerance-adjusted balance during %s", operation)
		suggestion = "adjust the model tolerance or wait for new settling entries"
	case CodeNotPermitted:
		message = fmt.Sprintf("auto-reconciliation not permitted during %s", operation)
		suggestion = "the candidate set is a suggestion only; reconcile manually"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check system resources and try again"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	result := build(err, CategoryReconciliation, code, message)
	return result.WithSuggestion(suggestion).WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *EngineError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	result := build(err, CategoryInternal, CodeUnexpectedError, message)
	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

func build(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// IsEngineError checks if an error is an EngineError
func IsEngineError(err error) bool {
	_, ok := err.(*EngineError)
	return ok
}

// AsEngineError extracts an EngineError from an error chain
func AsEngineError(err error) (*EngineError, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given engine error code
func HasCode(err error, code ErrorCode) bool {
	if engineErr, ok := AsEngineError(err); ok {
		return engineErr.Code == code
	}
	return false
}

// Summarize joins the messages of multiple errors into one line
func Summarize(errs []error) string {
	if len(errs) == 0 {
		return "no errors"
	}
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
