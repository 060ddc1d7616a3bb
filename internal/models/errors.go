package models

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies engine errors. The kind decides whether a failure is
// batch-fatal or recipient-local, and whether it may be retried.
type Kind string

// Kind constants define the error taxonomy of the distribution engine.
const (
	KindParse         Kind = "PARSE_ERROR"
	KindUnknownColumn Kind = "UNKNOWN_COLUMN"
	KindValidation    Kind = "VALIDATION_ERROR"
	KindRender        Kind = "RENDER_ERROR"
	KindCredential    Kind = "CREDENTIAL_ERROR"
	KindSend          Kind = "SEND_ERROR"
	KindCancelled     Kind = "CANCELLED"
)

// Error is a classified engine error wrapping an underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf creates a classified error from a format string.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from an error chain.
// Unclassified errors report KindSend so they stay recipient-local.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSend
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// BatchFatal reports whether an error of this kind aborts the whole batch
// before any send is attempted.
func (k Kind) BatchFatal() bool {
	switch k {
	case KindParse, KindUnknownColumn, KindValidation, KindCredential:
		return true
	}
	return false
}

// Retryable reports whether a send failure is transient and worth retrying.
// Render failures and authentication rejections are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) != KindSend {
		return false
	}

	msg := strings.ToLower(err.Error())

	// authentication rejections are permanent even mid-batch
	if strings.Contains(msg, "535") || strings.Contains(msg, "auth") {
		return false
	}

	for _, marker := range []string{
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"broken pipe",
		"temporary",
		"421", // service not available, closing channel
		"450", // mailbox busy
		"451", // local error in processing
		"452", // insufficient storage
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
