package interval

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hupe1980/tindex/internal/errs"
)

// Forever is the upper bound of an interval that has not been closed yet.
const Forever int64 = math.MaxInt64

const (
	boundSize = 8
	pairSize  = 2 * boundSize
)

// Interval is a half-open validity range [Lower, Upper).
type Interval struct {
	Lower int64
	Upper int64
}

// Open returns an interval starting at lower that never ends.
func Open(lower int64) Interval {
	return Interval{Lower: lower, Upper: Forever}
}

// IsOpen reports whether the interval has no upper bound.
func (iv Interval) IsOpen() bool {
	return iv.Upper == Forever
}

// Contains reports whether instant lies within [Lower, Upper).
func (iv Interval) Contains(instant int64) bool {
	return iv.Lower <= instant && instant < iv.Upper
}

func (iv Interval) String() string {
	if iv.IsOpen() {
		return fmt.Sprintf("[%d,∞)", iv.Lower)
	}
	return fmt.Sprintf("[%d,%d)", iv.Lower, iv.Upper)
}

// List is an ordered sequence of intervals.
type List []Interval

func (l List) String() string {
	parts := make([]string, len(l))
	for i, iv := range l {
		parts[i] = iv.String()
	}
	return strings.Join(parts, ", ")
}

// Last returns the final interval of the list.
func (l List) Last() (Interval, bool) {
	if len(l) == 0 {
		return Interval{}, false
	}
	return l[len(l)-1], true
}

// Equal reports whether both lists hold the same intervals.
func (l List) Equal(other List) bool {
	return slices.Equal(l, other)
}

// Encode packs the list into its binary form.
func Encode(l List) []byte {
	buf := make([]byte, 0, len(l)*pairSize)
	for _, iv := range l {
		buf = AppendInterval(buf, iv)
	}
	return buf
}

// AppendInterval appends the binary form of iv to dst.
func AppendInterval(dst []byte, iv Interval) []byte {
	dst = binary.BigEndian.AppendUint64(dst, uint64(iv.Lower))
	return binary.BigEndian.AppendUint64(dst, uint64(iv.Upper))
}

// Decode unpacks a binary interval list.
//
// It fails with errs.ErrInvariant if the buffer does not hold a whole number
// of bound pairs or if any interval has Lower > Upper.
func Decode(packed []byte) (List, error) {
	if len(packed)%pairSize != 0 {
		return nil, errs.Invariantf("interval list of %d bytes has an odd number of bounds", len(packed))
	}
	n := len(packed) / pairSize
	l := make(List, n)
	for i := 0; i < n; i++ {
		iv := at(packed, i)
		if iv.Lower > iv.Upper {
			return nil, errs.Invariantf("interval %d has lower bound %d above upper bound %d", i, iv.Lower, iv.Upper)
		}
		l[i] = iv
	}
	return l, nil
}

// Validate checks the structural invariants of a stored cell: at least one
// interval, non-empty ascending intervals without overlap, and only the last
// interval open.
func Validate(l List) error {
	if len(l) == 0 {
		return errs.Invariantf("cell without intervals")
	}
	for i, iv := range l {
		if iv.Lower < 0 {
			return errs.Invariantf("interval %s has a negative lower bound", iv)
		}
		if iv.Lower >= iv.Upper {
			return errs.Invariantf("interval %s is empty or inverted", iv)
		}
		if iv.IsOpen() && i != len(l)-1 {
			return errs.Invariantf("open interval %s is not the last one", iv)
		}
		if i > 0 && l[i-1].Upper > iv.Lower {
			return errs.Invariantf("interval %s overlaps %s", l[i-1], iv)
		}
	}
	return nil
}

// count returns the number of intervals in a packed buffer whose length was
// already checked.
func count(packed []byte) int {
	return len(packed) / pairSize
}

func at(packed []byte, i int) Interval {
	off := i * pairSize
	return Interval{
		Lower: int64(binary.BigEndian.Uint64(packed[off:])),
		Upper: int64(binary.BigEndian.Uint64(packed[off+boundSize:])),
	}
}
