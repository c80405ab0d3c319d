// Package query describes the search conditions an index scan evaluates.
//
// A Spec names a property, an operator and one or more operand values. It is
// deliberately opaque to the index engine's callers: choosing an index and
// building a Spec is the planner's job; evaluating it is the engine's.
package query

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the type of a Value.
type Kind uint8

const (
	// KindInvalid is the zero Kind.
	KindInvalid Kind = iota
	// KindInt is a 64-bit signed integer.
	KindInt
	// KindFloat is a 64-bit float.
	KindFloat
	// KindString is a UTF-8 string.
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k == KindInvalid {
		return nil, fmt.Errorf("cannot marshal invalid kind")
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses the result of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "int", "integer", "long":
		return KindInt, nil
	case "float", "double":
		return KindFloat, nil
	case "string", "text":
		return KindString, nil
	}
	return KindInvalid, fmt.Errorf("unknown value kind %q", s)
}

// Value is a typed indexed value.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	S    string
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, S: v} }

// Parse converts text into a Value of the given kind.
func Parse(kind Kind, s string) (Value, error) {
	switch kind {
	case KindInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, err
		}
		return Int(v), nil
	case KindFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, err
		}
		return Float(v), nil
	case KindString:
		return String(s), nil
	}
	return Value{}, fmt.Errorf("cannot parse into kind %s", kind)
}

// AsFloat returns the value as float64 for int and float values.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.F64, true
	case KindInt:
		return float64(v.I64), true
	}
	return 0, false
}

// Text renders the value the way string operators see it.
func (v Value) Text() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindString:
		return v.S
	}
	return ""
}

func (v Value) String() string {
	if v.Kind == KindString {
		return strconv.Quote(v.S)
	}
	return v.Text()
}

// Op is a comparison operator.
type Op uint8

const (
	OpAny Op = iota
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpIn
	OpNotIn
	OpStartsWith
	OpNotStartsWith
	OpEndsWith
	OpNotEndsWith
	OpContains
	OpNotContains
	OpMatches
	OpNotMatches
	OpLike
	OpNotLike
)

var opNames = [...]string{
	OpAny:           "any",
	OpEqual:         "eq",
	OpNotEqual:      "ne",
	OpGreater:       "gt",
	OpGreaterEqual:  "ge",
	OpLess:          "lt",
	OpLessEqual:     "le",
	OpIn:            "in",
	OpNotIn:         "not-in",
	OpStartsWith:    "starts-with",
	OpNotStartsWith: "not-starts-with",
	OpEndsWith:      "ends-with",
	OpNotEndsWith:   "not-ends-with",
	OpContains:      "contains",
	OpNotContains:   "not-contains",
	OpMatches:       "matches",
	OpNotMatches:    "not-matches",
	OpLike:          "like",
	OpNotLike:       "not-like",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// ParseOp parses the result of Op.String.
func ParseOp(s string) (Op, error) {
	for i, name := range opNames {
		if name == s {
			return Op(i), nil
		}
	}
	return OpAny, fmt.Errorf("unknown operator %q", s)
}

// IsText reports whether the operator works on the text form of values.
func (o Op) IsText() bool {
	return o >= OpStartsWith
}

// ErrInvalidSpec is returned by Validate.
var ErrInvalidSpec = errors.New("invalid query spec")

// Spec is a search condition on one property.
type Spec struct {
	// Property is the indexed property.
	Property string

	// Op is the operator.
	Op Op

	// Value is the operand of single-valued operators.
	Value Value

	// Values are the operands of OpIn and OpNotIn.
	Values []Value

	// CaseInsensitive compares text case-folded.
	CaseInsensitive bool

	// Tolerance widens float equality to |v - Value| <= Tolerance. Zero uses
	// the engine default.
	Tolerance float64
}

// Validate checks that the spec is well formed.
func (s Spec) Validate() error {
	if s.Property == "" {
		return fmt.Errorf("%w: empty property", ErrInvalidSpec)
	}
	if s.Tolerance < 0 || math.IsNaN(s.Tolerance) || math.IsInf(s.Tolerance, 0) {
		return fmt.Errorf("%w: tolerance %v", ErrInvalidSpec, s.Tolerance)
	}
	switch s.Op {
	case OpAny:
		return nil
	case OpIn, OpNotIn:
		if len(s.Values) == 0 {
			return fmt.Errorf("%w: %s needs at least one value", ErrInvalidSpec, s.Op)
		}
		for _, v := range s.Values {
			if v.Kind == KindInvalid {
				return fmt.Errorf("%w: %s operand without kind", ErrInvalidSpec, s.Op)
			}
		}
		return nil
	case OpMatches, OpNotMatches:
		if _, err := regexp.Compile(s.Value.Text()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
	}
	if int(s.Op) >= len(opNames) {
		return fmt.Errorf("%w: unknown operator %d", ErrInvalidSpec, s.Op)
	}
	if s.Value.Kind == KindInvalid {
		return fmt.Errorf("%w: %s needs a value", ErrInvalidSpec, s.Op)
	}
	return nil
}

// Fold returns a copy of s that compares text case-insensitively.
func (s Spec) Fold() Spec {
	s.CaseInsensitive = true
	return s
}

// WithTolerance returns a copy of s with float tolerance tol.
func (s Spec) WithTolerance(tol float64) Spec {
	s.Tolerance = tol
	return s
}

func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Property)
	b.WriteByte(' ')
	b.WriteString(s.Op.String())
	switch s.Op {
	case OpAny:
	case OpIn, OpNotIn:
		b.WriteString(" [")
		for i, v := range s.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(v.String())
		}
		b.WriteByte(']')
	default:
		b.WriteByte(' ')
		b.WriteString(s.Value.String())
	}
	if s.CaseInsensitive {
		b.WriteString(" (ci)")
	}
	return b.String()
}

// Any matches every value of property.
func Any(property string) Spec { return Spec{Property: property, Op: OpAny} }

// Eq matches values equal to v.
func Eq(property string, v Value) Spec { return Spec{Property: property, Op: OpEqual, Value: v} }

// Ne matches values not equal to v.
func Ne(property string, v Value) Spec { return Spec{Property: property, Op: OpNotEqual, Value: v} }

// Gt matches values greater than v.
func Gt(property string, v Value) Spec { return Spec{Property: property, Op: OpGreater, Value: v} }

// Ge matches values greater than or equal to v.
func Ge(property string, v Value) Spec {
	return Spec{Property: property, Op: OpGreaterEqual, Value: v}
}

// Lt matches values less than v.
func Lt(property string, v Value) Spec { return Spec{Property: property, Op: OpLess, Value: v} }

// Le matches values less than or equal to v.
func Le(property string, v Value) Spec { return Spec{Property: property, Op: OpLessEqual, Value: v} }

// In matches values equal to any of vs.
func In(property string, vs ...Value) Spec {
	return Spec{Property: property, Op: OpIn, Values: vs}
}

// NotIn matches values equal to none of vs.
func NotIn(property string, vs ...Value) Spec {
	return Spec{Property: property, Op: OpNotIn, Values: vs}
}

// StartsWith matches text values with the given prefix.
func StartsWith(property, prefix string) Spec {
	return Spec{Property: property, Op: OpStartsWith, Value: String(prefix)}
}

// EndsWith matches text values with the given suffix.
func EndsWith(property, suffix string) Spec {
	return Spec{Property: property, Op: OpEndsWith, Value: String(suffix)}
}

// Contains matches text values containing sub.
func Contains(property, sub string) Spec {
	return Spec{Property: property, Op: OpContains, Value: String(sub)}
}

// Matches matches text values against a regular expression.
func Matches(property, expr string) Spec {
	return Spec{Property: property, Op: OpMatches, Value: String(expr)}
}

// Like matches text values against a glob pattern where * matches any run
// of characters and ? a single character.
func Like(property, pattern string) Spec {
	return Spec{Property: property, Op: OpLike, Value: String(pattern)}
}
