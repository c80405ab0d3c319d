package keycodec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/hupe1980/tindex/internal/errs"
)

// Parsed is a decoded composite key.
type Parsed[V any] struct {
	// Value is the indexed value used for condition evaluation. For folded
	// keys it is the case-folded form.
	Value V

	// Original is the value as written. It equals Value except for folded keys.
	Original V

	// Raw is the encoded value portion of the key. Consecutive keys with equal
	// Raw bytes belong to the same indexed value.
	Raw []byte

	// Entity is the entity key.
	Entity string
}

// Codec encodes and parses composite keys for one value type.
type Codec[V any] interface {
	// Key returns the composite key of (value, entity).
	Key(value V, entity string) []byte

	// ValuePrefix returns the encoded value portion shared by every key
	// holding value. Keys of value sort at or after it.
	ValuePrefix(value V) []byte

	// ValueEnd returns the smallest encoding that sorts after every key of
	// value, or nil if no such bound exists.
	ValueEnd(value V) []byte

	// Parse splits a composite key.
	Parse(key []byte) (Parsed[V], error)
}

const signFlip uint64 = 1 << 63

// Int64 is the codec for 64-bit integer values.
type Int64 struct{}

func encodeInt64(v int64) uint64 {
	return uint64(v) ^ signFlip
}

func (Int64) ValuePrefix(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, encodeInt64(v))
}

func (Int64) ValueEnd(v int64) []byte {
	if v == math.MaxInt64 {
		return nil
	}
	return binary.BigEndian.AppendUint64(nil, encodeInt64(v+1))
}

func (c Int64) Key(v int64, entity string) []byte {
	key := make([]byte, 0, 8+len(entity))
	key = binary.BigEndian.AppendUint64(key, encodeInt64(v))
	return append(key, entity...)
}

func (Int64) Parse(key []byte) (Parsed[int64], error) {
	if len(key) < 8 {
		return Parsed[int64]{}, errs.Invariantf("int64 key of %d bytes is too short", len(key))
	}
	v := int64(binary.BigEndian.Uint64(key) ^ signFlip)
	return Parsed[int64]{Value: v, Original: v, Raw: key[:8], Entity: string(key[8:])}, nil
}

// Float64 is the codec for 64-bit floating point values. NaN must be
// rejected by the caller; -0 is stored as +0.
type Float64 struct{}

func encodeFloat64(v float64) uint64 {
	if v == 0 {
		v = 0 // folds -0 into +0
	}
	bits := math.Float64bits(v)
	if bits&signFlip != 0 {
		return ^bits
	}
	return bits | signFlip
}

func decodeFloat64(u uint64) float64 {
	if u&signFlip != 0 {
		return math.Float64frombits(u &^ signFlip)
	}
	return math.Float64frombits(^u)
}

func (Float64) ValuePrefix(v float64) []byte {
	return binary.BigEndian.AppendUint64(nil, encodeFloat64(v))
}

func (Float64) ValueEnd(v float64) []byte {
	u := encodeFloat64(v)
	if u == math.MaxUint64 {
		return nil
	}
	return binary.BigEndian.AppendUint64(nil, u+1)
}

func (Float64) Key(v float64, entity string) []byte {
	key := make([]byte, 0, 8+len(entity))
	key = binary.BigEndian.AppendUint64(key, encodeFloat64(v))
	return append(key, entity...)
}

func (Float64) Parse(key []byte) (Parsed[float64], error) {
	if len(key) < 8 {
		return Parsed[float64]{}, errs.Invariantf("float64 key of %d bytes is too short", len(key))
	}
	v := decodeFloat64(binary.BigEndian.Uint64(key))
	return Parsed[float64]{Value: v, Original: v, Raw: key[:8], Entity: string(key[8:])}, nil
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if prefix consists only of 0xFF bytes.
func PrefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
