package index

import (
	"slices"

	"github.com/hupe1980/tindex/internal/errs"
	"github.com/hupe1980/tindex/internal/keycodec"
	"github.com/hupe1980/tindex/internal/scan"
	"github.com/hupe1980/tindex/query"
)

// plan is the set of scans answering one spec.
type plan[V any] struct {
	folded  bool
	codec   keycodec.Codec[V]
	configs []scan.Config[V]
	order   Order
	dedup   bool
}

func (s *typed[V]) plan(spec query.Spec) (plan[V], error) {
	p := plan[V]{codec: s.codec, order: Ascending}
	if spec.CaseInsensitive && s.folded != nil {
		p.folded = true
		p.codec = s.folded
	}

	// Text operators run on every value type against the rendered value.
	if spec.Op.IsText() {
		return s.planText(p, spec)
	}

	switch spec.Op {
	case query.OpAny:
		p.configs = append(p.configs, s.fullScan(func(V) bool { return true }))
		return p, nil
	case query.OpIn, query.OpNotIn:
		return s.planIn(p, spec)
	}

	v, err := s.operand(p, spec.Value)
	if err != nil {
		return p, err
	}
	tol := s.tolerance(spec)

	switch spec.Op {
	case query.OpEqual:
		p.configs = append(p.configs, s.equalScan(p, v, tol))
	case query.OpNotEqual:
		lo, hi := s.equalBand(v, tol)
		p.configs = append(p.configs, s.fullScan(func(x V) bool {
			return s.compare(x, lo) < 0 || s.compare(x, hi) > 0
		}))
	case query.OpGreaterEqual:
		p.configs = append(p.configs, scan.Config[V]{
			Direction: scan.Ascending,
			Start:     p.codec.ValuePrefix(v),
			Match:     func(x V) bool { return s.compare(x, v) >= 0 },
			Skip:      func(x V) bool { return s.compare(x, v) < 0 },
			Stop:      scan.StopAtFirstMismatch,
		})
	case query.OpGreater:
		p.configs = append(p.configs, scan.Config[V]{
			Direction: scan.Ascending,
			Start:     p.codec.ValuePrefix(v),
			Match:     func(x V) bool { return s.compare(x, v) > 0 },
			Skip:      func(x V) bool { return s.compare(x, v) == 0 },
			Stop:      scan.StopAtFirstMismatch,
		})
	case query.OpLessEqual:
		p.order = Descending
		p.configs = append(p.configs, scan.Config[V]{
			Direction: scan.Descending,
			Start:     p.codec.ValueEnd(v),
			Match:     func(x V) bool { return s.compare(x, v) <= 0 },
			Skip:      func(x V) bool { return s.compare(x, v) > 0 },
			Stop:      scan.StopAtFirstMismatch,
		})
	case query.OpLess:
		p.order = Descending
		p.configs = append(p.configs, scan.Config[V]{
			Direction: scan.Descending,
			Start:     p.codec.ValuePrefix(v),
			Match:     func(x V) bool { return s.compare(x, v) < 0 },
			Skip:      func(x V) bool { return s.compare(x, v) == 0 },
			Stop:      scan.StopAtFirstMismatch,
		})
	default:
		return p, errs.Preconditionf("operator %s is not supported", spec.Op)
	}
	return p, nil
}

// operand converts a spec value, folding it for case-insensitive plans.
func (s *typed[V]) operand(p plan[V], value query.Value) (V, error) {
	v, err := s.convert(value)
	if err != nil {
		return v, err
	}
	return s.foldIf(p.folded, v), nil
}

func (s *typed[V]) tolerance(spec query.Spec) float64 {
	if spec.Tolerance > 0 {
		return spec.Tolerance
	}
	return s.opts.FloatTolerance
}

func (s *typed[V]) equalBand(v V, tol float64) (V, V) {
	if s.band == nil || tol <= 0 {
		return v, v
	}
	return s.band(v, tol)
}

func (s *typed[V]) equalScan(p plan[V], v V, tol float64) scan.Config[V] {
	lo, hi := s.equalBand(v, tol)
	return scan.Config[V]{
		Direction: scan.Ascending,
		Start:     p.codec.ValuePrefix(lo),
		Match:     func(x V) bool { return s.compare(x, lo) >= 0 && s.compare(x, hi) <= 0 },
		Skip:      func(x V) bool { return s.compare(x, lo) < 0 },
		Stop:      scan.StopAtFirstMismatch,
	}
}

func (s *typed[V]) fullScan(match func(V) bool) scan.Config[V] {
	return scan.Config[V]{
		Direction: scan.Ascending,
		Match:     match,
		Stop:      scan.ScanUntilEnd,
	}
}

func (s *typed[V]) planIn(p plan[V], spec query.Spec) (plan[V], error) {
	vs := make([]V, 0, len(spec.Values))
	for _, value := range spec.Values {
		v, err := s.operand(p, value)
		if err != nil {
			return p, err
		}
		vs = append(vs, v)
	}
	slices.SortFunc(vs, s.compare)
	vs = slices.CompactFunc(vs, func(a, b V) bool { return s.compare(a, b) == 0 })
	tol := s.tolerance(spec)

	if spec.Op == query.OpIn && len(vs) <= s.opts.unionLimit() {
		for _, v := range vs {
			p.configs = append(p.configs, s.equalScan(p, v, tol))
		}
		p.order = Unordered
		p.dedup = len(vs) > 1
		return p, nil
	}

	member := func(x V) bool {
		for _, v := range vs {
			lo, hi := s.equalBand(v, tol)
			if s.compare(x, lo) >= 0 && s.compare(x, hi) <= 0 {
				return true
			}
		}
		return false
	}
	if spec.Op == query.OpNotIn {
		p.configs = append(p.configs, s.fullScan(func(x V) bool { return !member(x) }))
	} else {
		p.configs = append(p.configs, s.fullScan(member))
	}
	return p, nil
}

func (s *typed[V]) planText(p plan[V], spec query.Spec) (plan[V], error) {
	var fold func(string) string
	if p.folded {
		fold = keycodec.Fold
	}
	m, err := query.NewTextMatcher(spec, fold)
	if err != nil {
		return p, errs.Preconditionf("%v", err)
	}
	match := func(x V) bool { return m(s.text(x)) }

	// Prefix queries on text are monotonic: every matching key sorts at or
	// after the escaped prefix and matches end the first time one fails.
	if spec.Op == query.OpStartsWith && s.prefixStart != nil {
		v, err := s.operand(p, spec.Value)
		if err != nil {
			return p, err
		}
		p.configs = append(p.configs, scan.Config[V]{
			Direction: scan.Ascending,
			Start:     s.prefixStart(v),
			Match:     match,
			Stop:      scan.StopAtFirstMismatch,
		})
		return p, nil
	}
	cfg := s.fullScan(match)
	// Folding can change a value's length, so patterns see the original.
	if p.folded && (spec.Op == query.OpMatches || spec.Op == query.OpNotMatches) {
		cfg.MatchOriginal = true
	}
	p.configs = append(p.configs, cfg)
	return p, nil
}
