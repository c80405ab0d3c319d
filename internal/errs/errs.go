// Package errs defines the error taxonomy shared by the index internals.
//
// Two classes exist:
//
//   - ErrPrecondition: the caller passed malformed input (negative instant,
//     odd interval list, non-finite search value, malformed table name).
//   - ErrInvariant: stored data violates an invariant that a previous mutation
//     should have upheld. The enclosing transaction must be aborted.
//
// Absence (missing row, missing table) is never an error.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition is returned when an argument is malformed.
	ErrPrecondition = errors.New("precondition violation")

	// ErrInvariant is returned when stored index data is inconsistent.
	ErrInvariant = errors.New("invariant violation")
)

// Preconditionf returns an error wrapping ErrPrecondition.
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// Invariantf returns an error wrapping ErrInvariant.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// CheckInstant rejects negative instants.
func CheckInstant(name string, instant int64) error {
	if instant < 0 {
		return Preconditionf("%s must not be negative, got %d", name, instant)
	}
	return nil
}
