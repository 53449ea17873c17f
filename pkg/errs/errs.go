// Package errs holds the error kinds returned by the execution core.
//
// Every error returned by vexec wraps exactly one of the kinds below, so
// callers can classify failures with [errors.Is].
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrNullNotAllowed     = errors.New("null not allowed")
	ErrOutOfBounds        = errors.New("out of bounds")
	ErrSchemaMismatch     = errors.New("schema mismatch")
	ErrDuplicateFieldName = errors.New("duplicate field name")
	ErrOperatorInit       = errors.New("operator init error")
	ErrInvalidState       = errors.New("invalid state")

	// ErrReadOnly is returned when writing through a shared view of a vector.
	ErrReadOnly = errors.New("read-only vector")
	// ErrMemoryLimit is returned when an allocation would exceed the
	// allocator's policy limit.
	ErrMemoryLimit    = errors.New("memory limit exceeded")
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidArgument is returned for malformed configuration and input
	// that cannot be parsed.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Newf returns an error of the given kind with a formatted message. The
// result matches kind with [errors.Is].
func Newf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
