package backup

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the stream compression of index blobs.
type Compression string

const (
	// CompressionNone stores records as written.
	CompressionNone Compression = "none"
	// CompressionLZ4 uses LZ4 frames (fast).
	CompressionLZ4 Compression = "lz4"
	// CompressionZstd uses Zstandard (better ratio). The default.
	CompressionZstd Compression = "zstd"
)

// ParseCompression parses a compression name. The empty string selects
// CompressionZstd.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "":
		return CompressionZstd, nil
	case CompressionNone, CompressionLZ4, CompressionZstd:
		return c, nil
	}
	return "", fmt.Errorf("backup: unknown compression %q", s)
}

func (c Compression) String() string { return string(c) }

// Extension returns the file suffix of blobs written with c.
func (c Compression) Extension() string {
	switch c {
	case CompressionLZ4:
		return ".lz4"
	case CompressionZstd:
		return ".zst"
	}
	return ""
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// newWriter wraps w. Closing the result flushes the compressor but leaves w
// open.
func (c Compression) newWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	}
	return nil, fmt.Errorf("backup: unknown compression %q", string(c))
}

type zstdReadCloser struct{ *zstd.Decoder }

func (r zstdReadCloser) Close() error {
	r.Decoder.Close()
	return nil
}

// newReader wraps r. Closing the result releases decoder resources but
// leaves r open.
func (c Compression) newReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	}
	return nil, fmt.Errorf("backup: unknown compression %q", string(c))
}
