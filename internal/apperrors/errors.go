package apperrors

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeValidation        = "VALIDATION"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeReferential       = "REFERENTIAL"
	CodeLockTimeout       = "LOCK_TIMEOUT"
	CodeRateLimited       = "RATE_LIMITED"
	CodeCorruptData       = "CORRUPT_DATA"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error is a structured, user-visible failure with a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// New creates an Error with the given code and formatted message.
func New(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewValidation reports a malformed or out-of-range field value.
func NewValidation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

// NewNotFound reports an unknown task, project, or subtask id.
func NewNotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

// NewInvalidTransition reports a status change not permitted from the current state.
func NewInvalidTransition(format string, args ...any) *Error {
	return New(CodeInvalidTransition, format, args...)
}

// NewReferential reports an operation blocked by dependent records.
func NewReferential(format string, args ...any) *Error {
	return New(CodeReferential, format, args...)
}

// NewLockTimeout reports a store mutation that could not acquire its lock.
func NewLockTimeout(format string, args ...any) *Error {
	return New(CodeLockTimeout, format, args...)
}

// NewRateLimited reports a manual operation invoked too soon after the last one.
func NewRateLimited(format string, args ...any) *Error {
	return New(CodeRateLimited, format, args...)
}

// NewCorruptData reports collection file contents that are not valid JSON.
func NewCorruptData(format string, args ...any) *Error {
	return New(CodeCorruptData, format, args...)
}

// CodeOf returns the code of err, or CodeInternal for unrecognized errors.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
