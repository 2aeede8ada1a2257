package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"

	// Storage backend classifications. Unavailable means "try the next
	// backend"; Rejected means the record itself was malformed and a retry
	// cannot help.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
	ErrCodeRejected    ErrorCode = "REJECTED"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrUserNotFound    = NewError(ErrCodeNotFound, "user not found")
	ErrSessionNotFound = NewError(ErrCodeNotFound, "session not found")
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload  = NewError(ErrCodeInvalid, "invalid payload")

	// Validation failures reported by Validate. They are deliberately
	// distinct so callers can log why a session was discarded.
	ErrSessionExpired   = NewError(ErrCodeUnauthorized, "session expired")
	ErrSessionSignedOut = NewError(ErrCodeUnauthorized, "session signed out")
	ErrMissingIdentity  = NewError(ErrCodeUnauthorized, "session missing identity claims")

	// ErrFingerprintMismatch is kept separate from ordinary invalidity so the
	// caller can choose strict (reject) or lenient (warn) policy.
	ErrFingerprintMismatch = NewError(ErrCodeUnauthorized, "session fingerprint mismatch")

	// Backend failure classifications.
	ErrBackendUnavailable     = NewError(ErrCodeUnavailable, "session backend unavailable")
	ErrRecordRejected         = NewError(ErrCodeRejected, "session record rejected by backend")
	ErrAllBackendsUnavailable = NewError(ErrCodeUnavailable, "no session backend accepted the write")

	ErrSessionLimitReached = NewError(ErrCodeConflict, "too many active sessions")
)

// Unavailable wraps a backend transport error so the continuity manager can
// fall through to the next backend instead of failing the request.
func Unavailable(backend string, err error) *Error {
	return WrapError(ErrCodeUnavailable, "session backend "+backend+" unavailable", err)
}

// Rejected wraps a serialization or storage-boundary validation failure.
func Rejected(backend string, err error) *Error {
	return WrapError(ErrCodeRejected, "session backend "+backend+" rejected record", err)
}

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
