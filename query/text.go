package query

import (
	"regexp"
	"strings"

	"github.com/tidwall/match"
)

// TextMatcher evaluates a text operator. fold is applied to both operand
// and candidate when the spec is case-insensitive.
type TextMatcher func(candidate string) bool

// NewTextMatcher compiles the text operator of s. fold may be nil.
func NewTextMatcher(s Spec, fold func(string) string) (TextMatcher, error) {
	if fold == nil || !s.CaseInsensitive {
		fold = func(v string) string { return v }
	}
	operand := fold(s.Value.Text())

	var m TextMatcher
	switch s.Op {
	case OpStartsWith, OpNotStartsWith:
		m = func(c string) bool { return strings.HasPrefix(fold(c), operand) }
	case OpEndsWith, OpNotEndsWith:
		m = func(c string) bool { return strings.HasSuffix(fold(c), operand) }
	case OpContains, OpNotContains:
		m = func(c string) bool { return strings.Contains(fold(c), operand) }
	case OpLike, OpNotLike:
		m = func(c string) bool { return match.Match(fold(c), operand) }
	case OpMatches, OpNotMatches:
		expr := s.Value.Text()
		if s.CaseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		m = re.MatchString
	default:
		return nil, nil
	}

	switch s.Op {
	case OpNotStartsWith, OpNotEndsWith, OpNotContains, OpNotLike, OpNotMatches:
		return func(c string) bool { return !m(c) }, nil
	}
	return m, nil
}
