package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors: fatal, surfaced immediately, never retried
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
	ErrFlowInvalid   ErrorCode = "FLOW_INVALID"
	ErrManifestParse ErrorCode = "MANIFEST_PARSE"

	// Resolution errors
	ErrResolveConflict ErrorCode = "RESOLVE_CONFLICT"
	ErrResolveAborted  ErrorCode = "RESOLVE_ABORTED"
	ErrRangeInvalid    ErrorCode = "RANGE_INVALID"

	// Source/load errors
	ErrLoadFailed     ErrorCode = "LOAD_FAILED"
	ErrSourceInvalid  ErrorCode = "SOURCE_INVALID"
	ErrPackageMissing ErrorCode = "PACKAGE_MISSING"

	// Merge/write errors
	ErrMergeParse ErrorCode = "MERGE_PARSE"
	ErrFileWrite  ErrorCode = "FILE_WRITE"
	ErrFileAccess ErrorCode = "FILE_ACCESS"
	ErrDirCreate  ErrorCode = "DIR_CREATE"
)

// LodgeError represents a structured error with code and details
type LodgeError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *LodgeError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *LodgeError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *LodgeError) Is(target error) bool {
	var targetErr *LodgeError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new LodgeError with the given code and message
func New(code ErrorCode, message string) *LodgeError {
	return &LodgeError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new LodgeError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *LodgeError {
	return &LodgeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a LodgeError
func Wrap(err error, code ErrorCode, message string) *LodgeError {
	if err == nil {
		return nil
	}
	return &LodgeError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *LodgeError {
	if err == nil {
		return nil
	}
	return &LodgeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *LodgeError) WithDetail(key string, value interface{}) *LodgeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var lodgeErr *LodgeError
	if errors.As(err, &lodgeErr) {
		return lodgeErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if
// not a LodgeError
func GetErrorCode(err error) ErrorCode {
	var lodgeErr *LodgeError
	if errors.As(err, &lodgeErr) {
		return lodgeErr.Code
	}
	return ErrUnknown
}
