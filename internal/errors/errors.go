// Package errors provides standardized error codes for the bridge.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (validation, agent, vcs, storage)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by UI clients for programmatic
// error handling. Human-readable messages are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes by domain.
const (
	// Validation domain - malformed or incomplete requests
	CodeValidationMissingField = "validation.missing_field"  // Required field absent or empty
	CodeValidationInvalidJSON  = "validation.invalid_json"   // Body is not valid JSON
	CodeValidationInvalidPath  = "validation.invalid_path"   // Path escapes the project root
	CodeValidationInvalidParam = "validation.invalid_param" // Query parameter present but malformed

	// Agent domain - AI coding agent subprocess
	CodeAgentNotFound        = "agent.not_found"        // Executable not resolvable or not startable
	CodeAgentTimeout         = "agent.timeout"          // Invocation exceeded its deadline
	CodeAgentExecutionFailed = "agent.execution_failed" // Agent exited non-zero
	CodeAgentRateLimited     = "agent.rate_limited"     // Too many submissions

	// VCS domain - version-control subprocess
	CodeVCSFailed = "vcs.failed" // VCS subcommand exited non-zero

	// Storage domain - invocation history
	CodeStorageOpenFailed  = "storage.open_failed"
	CodeStorageQueryFailed = "storage.query_failed"
	CodeStorageSaveFailed  = "storage.save_failed"

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "agent.timeout")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to client responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}
	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// HTTPStatus returns the HTTP status a dispatcher should answer with for err.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case "":
		return http.StatusOK
	case CodeValidationMissingField, CodeValidationInvalidJSON, CodeValidationInvalidPath,
		CodeValidationInvalidParam:
		return http.StatusBadRequest
	case CodeAgentRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// MissingField creates a "validation.missing_field" error.
// The message is what the UI shows, e.g. "Prompt is required".
func MissingField(message string) *CodedError {
	return New(CodeValidationMissingField, message)
}

// InvalidJSON creates a "validation.invalid_json" error.
func InvalidJSON(cause error) *CodedError {
	return Wrap(CodeValidationInvalidJSON, "Invalid JSON", cause)
}

// InvalidPath creates a "validation.invalid_path" error.
func InvalidPath(path, reason string) *CodedError {
	return New(CodeValidationInvalidPath, fmt.Sprintf("invalid file path: %s (%s)", path, reason))
}

// InvalidParam creates a "validation.invalid_param" error.
func InvalidParam(message string) *CodedError {
	return New(CodeValidationInvalidParam, message)
}

// AgentNotFound creates an "agent.not_found" error. name is the display name,
// executable the command the user has to install.
func AgentNotFound(name, executable string, cause error) *CodedError {
	return Wrap(CodeAgentNotFound,
		fmt.Sprintf("%s command not found. Please ensure %s is installed and available in PATH.", name, executable),
		cause)
}

// AgentTimeout creates an "agent.timeout" error.
func AgentTimeout(seconds int) *CodedError {
	return New(CodeAgentTimeout, fmt.Sprintf("Process timeout after %d seconds", seconds))
}

// AgentExecutionFailed creates an "agent.execution_failed" error.
func AgentExecutionFailed(message string) *CodedError {
	return New(CodeAgentExecutionFailed, message)
}

// RateLimited creates an "agent.rate_limited" error.
func RateLimited() *CodedError {
	return New(CodeAgentRateLimited, "Too many coding requests, try again shortly")
}

// VCSFailed creates a "vcs.failed" error.
func VCSFailed(message string, cause error) *CodedError {
	return Wrap(CodeVCSFailed, message, cause)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
