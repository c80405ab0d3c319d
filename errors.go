package tindex

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tindex/internal/errs"
	"github.com/hupe1980/tindex/internal/index"
	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/query"
)

var (
	// ErrPrecondition is returned for malformed arguments: negative instants,
	// odd interval lists, non-finite float values, malformed table names.
	ErrPrecondition = errs.ErrPrecondition

	// ErrInvariant signals stored index data that violates an invariant. The
	// transaction it happened in is rolled back.
	ErrInvariant = errs.ErrInvariant

	// ErrTypeMismatch is returned when a value does not fit the index type.
	ErrTypeMismatch = index.ErrTypeMismatch

	// ErrInvalidSpec is returned for malformed query specs.
	ErrInvalidSpec = query.ErrInvalidSpec

	// ErrClosed is returned after the engine was closed.
	ErrClosed = errors.New("engine closed")

	// ErrIndexNotFound is returned for unknown index ids or properties.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexExists is returned when creating a duplicate index.
	ErrIndexExists = errors.New("index already exists")

	// ErrReadOnly is returned when a mutation runs inside View.
	ErrReadOnly = kv.ErrReadOnly
)

// IndexError annotates an error with the operation and index it came from.
//
// The underlying error can be accessed via errors.Unwrap.
type IndexError struct {
	Op    string
	Index string
	Err   error
}

func (e *IndexError) Error() string {
	if e.Index == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Index, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

func translateError(op, indexID string, err error) error {
	if err == nil {
		return nil
	}
	var ie *IndexError
	if errors.As(err, &ie) {
		return err
	}
	if errors.Is(err, kv.ErrClosed) {
		err = fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return &IndexError{Op: op, Index: indexID, Err: err}
}
