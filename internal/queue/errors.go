package queue

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes queue errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates a malformed record rejected by Enqueue.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeInvalidState indicates use of a consumed queue.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeStore indicates a metadata store failure during Apply.
	ErrCodeStore ErrorCode = "STORE"

	// ErrCodeCancelled indicates Apply stopped because cancellation was requested.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// ErrStoreUnavailable is wrapped by MetadataStore implementations when the
// store cannot be reached at all. Apply treats it as fatal to the batch.
var ErrStoreUnavailable = errors.New("metadata store unavailable")

// Error is the error type returned by the queue.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Path is the affected path, if any.
	Path string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsInvalidState returns true if err reports use of a consumed queue.
func IsInvalidState(err error) bool { return hasCode(err, ErrCodeInvalidState) }

// IsStoreError returns true if err is a metadata store error.
func IsStoreError(err error) bool { return hasCode(err, ErrCodeStore) }

// IsCancelled returns true if err reports a cancelled apply pass.
func IsCancelled(err error) bool { return hasCode(err, ErrCodeCancelled) }

func validationError(path, format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Path: path, Message: fmt.Sprintf(format, args...)}
}

func invalidStateError(op string) *Error {
	return &Error{Code: ErrCodeInvalidState, Message: op + " on consumed queue"}
}

func storeError(path, op string, err error) *Error {
	return &Error{Code: ErrCodeStore, Path: path, Message: op + " failed", Err: err}
}
