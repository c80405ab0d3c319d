package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// CurrentName is the blob holding the name of the latest committed
// manifest. Commit stores may give it compare-and-swap semantics.
const CurrentName = "CURRENT"

// Store is an abstraction for named immutable blobs: backup streams,
// manifests and commit pointers.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a blob for streaming writes. The blob becomes visible
	// when the writer is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader for length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser

	// Sync flushes buffered data where the backend supports it.
	Sync() error
}

// NopReadCloser wraps r with a no-op Close.
func NopReadCloser(r io.Reader) io.ReadCloser {
	return io.NopCloser(r)
}

// NewReader opens name and returns a reader over its whole content.
func NewReader(ctx context.Context, s Store, name string) (io.ReadCloser, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if b.Size() == 0 {
		_ = b.Close()
		return NopReadCloser(eofReader{}), nil
	}
	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &blobReader{ReadCloser: rc, blob: b}, nil
}

// ReadAll returns the content of name.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	r, err := NewReader(ctx, s, name)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return data, nil
}

// IsNotFound reports whether err means a missing blob.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

type blobReader struct {
	io.ReadCloser
	blob Blob
}

func (r *blobReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.blob.Close(); err == nil {
		err = cerr
	}
	return err
}
