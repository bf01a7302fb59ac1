package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an application-specific error type
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// wraps an error with a code and message
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Error code constants
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInvalidArg = "INVALID_ARGUMENT"
	CodeExternal   = "EXTERNAL_ERROR"
	CodeConflict   = "CONFLICT"         // Resource already exists (UNIQUE violation)
	CodeDependency = "DEPENDENCY_ERROR" // Foreign key constraint violation

	// External service failures
	CodeConfiguration = "CONFIGURATION_ERROR" // Missing credentials or settings, needs operator action
	CodeTransport     = "TRANSPORT_ERROR"     // Network or HTTP failure
	CodeMalformed     = "MALFORMED_RESPONSE"  // Response could not be interpreted
	CodeEmptyResult   = "EMPTY_RESULT"        // Nominal success with unusable content
	CodeValidation    = "VALIDATION_ERROR"    // Local validation failure surfaced to the caller
)

// CodeOf returns the code of the outermost AppError in the chain, or "" when there is none
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether any AppError in the chain carries code
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsRetryable reports whether a retry may succeed without operator action
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if HasCode(err, CodeConfiguration) || HasCode(err, CodeValidation) || HasCode(err, CodeInvalidArg) {
		return false
	}
	return HasCode(err, CodeTransport) || HasCode(err, CodeMalformed) || HasCode(err, CodeEmptyResult) || HasCode(err, CodeExternal)
}
