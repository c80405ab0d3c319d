package keycodec

import (
	"strconv"
	"strings"

	"github.com/hupe1980/tindex/internal/errs"
)

// TablePrefix starts every physical index table name.
const TablePrefix = "ti"

const (
	kindExact  = 'x'
	kindFolded = 'f'
)

// TableName identifies the physical table holding one index in one keyspace.
type TableName struct {
	Keyspace string
	IndexID  string
	// Folded marks the case-insensitive companion table of a text index.
	Folded bool
}

// String encodes the name as
//
//	"ti" kind len(keyspace) ":" keyspace indexID
//
// where kind is 'x' for exact and 'f' for folded tables.
func (t TableName) String() string {
	var b strings.Builder
	b.Grow(len(TablePrefix) + 1 + 4 + len(t.Keyspace) + len(t.IndexID))
	b.WriteString(TablePrefix)
	if t.Folded {
		b.WriteByte(kindFolded)
	} else {
		b.WriteByte(kindExact)
	}
	b.WriteString(strconv.Itoa(len(t.Keyspace)))
	b.WriteByte(':')
	b.WriteString(t.Keyspace)
	b.WriteString(t.IndexID)
	return b.String()
}

// ParseTableName reverses TableName.String.
func ParseTableName(name string) (TableName, error) {
	rest, ok := strings.CutPrefix(name, TablePrefix)
	if !ok || len(rest) < 1 {
		return TableName{}, errs.Preconditionf("table name %q lacks the %q prefix", name, TablePrefix)
	}
	var t TableName
	switch rest[0] {
	case kindExact:
	case kindFolded:
		t.Folded = true
	default:
		return TableName{}, errs.Preconditionf("table name %q has unknown kind %q", name, rest[0])
	}
	rest = rest[1:]
	digits, rest, ok := strings.Cut(rest, ":")
	if !ok {
		return TableName{}, errs.Preconditionf("table name %q lacks a keyspace length", name)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 || strconv.Itoa(n) != digits {
		return TableName{}, errs.Preconditionf("table name %q has malformed keyspace length %q", name, digits)
	}
	if n > len(rest) {
		return TableName{}, errs.Preconditionf("table name %q declares keyspace length %d beyond its end", name, n)
	}
	t.Keyspace, t.IndexID = rest[:n], rest[n:]
	if t.IndexID == "" {
		return TableName{}, errs.Preconditionf("table name %q has an empty index id", name)
	}
	return t, nil
}
