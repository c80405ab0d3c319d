package index

import (
	"cmp"
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/tindex/internal/errs"
	"github.com/hupe1980/tindex/internal/keycodec"
	"github.com/hupe1980/tindex/query"
)

// NewInt returns a store for 64-bit integer values.
func NewInt(id string, opts Options) Store {
	return &typed[int64]{
		id:      id,
		kind:    query.KindInt,
		opts:    opts,
		codec:   keycodec.Int64{},
		compare: cmp.Compare[int64],
		wrap:    query.Int,
		text:    func(v int64) string { return query.Int(v).Text() },
		convert: func(v query.Value) (int64, error) {
			if v.Kind != query.KindInt {
				return 0, fmt.Errorf("%w: %s value for int index", ErrTypeMismatch, v.Kind)
			}
			return v.I64, nil
		},
	}
}

// NewFloat returns a store for 64-bit float values. Integer operands are
// converted; NaN and infinities are rejected.
func NewFloat(id string, opts Options) Store {
	return &typed[float64]{
		id:      id,
		kind:    query.KindFloat,
		opts:    opts,
		codec:   keycodec.Float64{},
		compare: cmp.Compare[float64],
		wrap:    query.Float,
		text:    func(v float64) string { return query.Float(v).Text() },
		convert: func(v query.Value) (float64, error) {
			f, ok := v.AsFloat()
			if !ok {
				return 0, fmt.Errorf("%w: %s value for float index", ErrTypeMismatch, v.Kind)
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return 0, errs.Preconditionf("float value %v is not finite", f)
			}
			if f == 0 {
				f = 0
			}
			return f, nil
		},
		band: func(v float64, tol float64) (float64, float64) {
			return v - tol, v + tol
		},
	}
}

// NewText returns a store for text values. It maintains an exact table and
// a case-folded table.
func NewText(id string, opts Options) Store {
	return &typed[string]{
		id:      id,
		kind:    query.KindString,
		opts:    opts,
		codec:   keycodec.Text{},
		folded:  keycodec.Folded{},
		fold:    keycodec.Fold,
		compare: strings.Compare,
		wrap:    query.String,
		text:    func(v string) string { return v },
		convert: func(v query.Value) (string, error) {
			if v.Kind != query.KindString {
				return "", fmt.Errorf("%w: %s value for text index", ErrTypeMismatch, v.Kind)
			}
			return v.S, nil
		},
		prefixStart: keycodec.EscapePrefix,
	}
}
