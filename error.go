package codeshell

import (
	"errors"
	"fmt"
)

// ErrorCodeValue identifies the class of a planning or commit failure.
type ErrorCodeValue string

// Error codes.
const (
	ErrInvalidSelector ErrorCodeValue = "invalid_selector"
	ErrInvalidRange    ErrorCodeValue = "invalid_range"
	ErrPatternNotFound ErrorCodeValue = "pattern_not_found"
	ErrOutOfScope      ErrorCodeValue = "out_of_scope"
	ErrAlreadyExists   ErrorCodeValue = "already_exists"
	ErrNotFound        ErrorCodeValue = "not_found"
	ErrEditTooLarge    ErrorCodeValue = "edit_too_large"
	ErrPatchRejected   ErrorCodeValue = "patch_rejected"
	ErrStorageFailure  ErrorCodeValue = "storage_failure"
	ErrStaleBuffer     ErrorCodeValue = "stale_buffer"
	ErrInternal        ErrorCodeValue = "internal"
)

// Error is a typed failure carrying a short user-visible message.
type Error struct {
	Code    ErrorCodeValue
	Message string
	Err     error // underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns an *Error with the given code and formatted message.
func Errorf(code ErrorCodeValue, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError returns an *Error with the given code wrapping err.
func WrapError(code ErrorCodeValue, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrorCode returns the code of the first *Error in err's chain, or
// ErrInternal for any other non-nil error.
func ErrorCode(err error) ErrorCodeValue {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// ErrorMessage returns the user-visible message of err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
