package interval

import "github.com/hupe1980/tindex/internal/errs"

func checkPacked(packed []byte) error {
	if len(packed)%pairSize != 0 {
		return errs.Preconditionf("packed interval list of %d bytes has an odd number of bounds", len(packed))
	}
	return nil
}

// ContainsInstant reports whether any interval in the packed list contains
// instant. It relies on the list being sorted and non-overlapping.
func ContainsInstant(packed []byte, instant int64) (bool, error) {
	if err := checkPacked(packed); err != nil {
		return false, err
	}
	lo, hi := 0, count(packed)-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		iv := at(packed, mid)
		switch {
		case instant < iv.Lower:
			hi = mid - 1
		case instant >= iv.Upper:
			lo = mid + 1
		default:
			return true, nil
		}
	}
	return false, nil
}

// LatestClosedBefore returns the last closed interval that ends at or before
// instant. It reports false if instant lies inside any interval or no closed
// interval precedes it.
func LatestClosedBefore(packed []byte, instant int64) (Interval, bool, error) {
	if err := checkPacked(packed); err != nil {
		return Interval{}, false, err
	}
	// lo ends up at the first interval whose upper bound lies after instant.
	lo, hi := 0, count(packed)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if at(packed, mid).Upper <= instant {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < count(packed) && at(packed, lo).Lower <= instant {
		return Interval{}, false, nil
	}
	if lo == 0 {
		return Interval{}, false, nil
	}
	prev := at(packed, lo-1)
	if prev.IsOpen() {
		return Interval{}, false, nil
	}
	return prev, true, nil
}
