package keycodec

import (
	"encoding/binary"

	"github.com/hupe1980/tindex/internal/errs"
	"golang.org/x/text/cases"
)

const (
	escByte  = 0x00
	escQuote = 0xFF
	escTerm  = 0x01
	lenSize  = 4
)

// Fold returns the case-folded form of s used by case-insensitive indices.
func Fold(s string) string {
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Fold().String(s)
}

// EscapePrefix returns the escaped form of s without terminator. Every value
// starting with s has an escaped form starting with EscapePrefix(s).
func EscapePrefix(s string) []byte {
	return appendEscaped(make([]byte, 0, len(s)+2), s)
}

func appendEscaped(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == escByte {
			dst = append(dst, escByte, escQuote)
			continue
		}
		dst = append(dst, s[i])
	}
	return dst
}

func appendTerminated(dst []byte, s string) []byte {
	return append(appendEscaped(dst, s), escByte, escTerm)
}

func unescape(esc []byte) (string, error) {
	if len(esc) < 2 || esc[len(esc)-2] != escByte || esc[len(esc)-1] != escTerm {
		return "", errs.Invariantf("escaped text value is not terminated")
	}
	body := esc[:len(esc)-2]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] == escByte {
			if i+1 >= len(body) || body[i+1] != escQuote {
				return "", errs.Invariantf("malformed escape sequence at offset %d", i)
			}
			out = append(out, escByte)
			i++
			continue
		}
		out = append(out, body[i])
	}
	return string(out), nil
}

// Text is the codec for case-sensitive text values.
type Text struct{}

func (Text) ValuePrefix(v string) []byte {
	return appendTerminated(make([]byte, 0, len(v)+2), v)
}

func (c Text) ValueEnd(v string) []byte {
	return PrefixEnd(c.ValuePrefix(v))
}

func (Text) Key(v string, entity string) []byte {
	key := make([]byte, 0, len(v)+len(entity)+2+lenSize)
	key = appendTerminated(key, v)
	n := len(key)
	key = append(key, entity...)
	return binary.BigEndian.AppendUint32(key, uint32(n))
}

func (Text) Parse(key []byte) (Parsed[string], error) {
	if len(key) < lenSize {
		return Parsed[string]{}, errs.Invariantf("text key of %d bytes is too short", len(key))
	}
	body := key[:len(key)-lenSize]
	n := int(binary.BigEndian.Uint32(key[len(key)-lenSize:]))
	if n > len(body) {
		return Parsed[string]{}, errs.Invariantf("text key value length %d exceeds key body of %d bytes", n, len(body))
	}
	v, err := unescape(body[:n])
	if err != nil {
		return Parsed[string]{}, err
	}
	return Parsed[string]{Value: v, Original: v, Raw: body[:n], Entity: string(body[n:])}, nil
}

// Folded is the codec for the case-insensitive companion table of a text
// index. Keys sort by folded value, then original value, then entity key.
type Folded struct{}

func (Folded) ValuePrefix(v string) []byte {
	f := Fold(v)
	return appendTerminated(make([]byte, 0, len(f)+2), f)
}

func (c Folded) ValueEnd(v string) []byte {
	return PrefixEnd(c.ValuePrefix(v))
}

func (Folded) Key(v string, entity string) []byte {
	f := Fold(v)
	key := make([]byte, 0, len(f)+len(v)+len(entity)+2+2*lenSize)
	key = appendTerminated(key, f)
	n := len(key)
	key = append(key, v...)
	key = append(key, entity...)
	key = binary.BigEndian.AppendUint32(key, uint32(n))
	return binary.BigEndian.AppendUint32(key, uint32(len(v)))
}

func (Folded) Parse(key []byte) (Parsed[string], error) {
	if len(key) < 2*lenSize {
		return Parsed[string]{}, errs.Invariantf("folded key of %d bytes is too short", len(key))
	}
	body := key[:len(key)-2*lenSize]
	nFolded := int(binary.BigEndian.Uint32(key[len(key)-2*lenSize:]))
	nOrig := int(binary.BigEndian.Uint32(key[len(key)-lenSize:]))
	if nFolded+nOrig > len(body) {
		return Parsed[string]{}, errs.Invariantf("folded key lengths %d+%d exceed key body of %d bytes", nFolded, nOrig, len(body))
	}
	f, err := unescape(body[:nFolded])
	if err != nil {
		return Parsed[string]{}, err
	}
	return Parsed[string]{
		Value:    f,
		Original: string(body[nFolded : nFolded+nOrig]),
		Raw:      body[:nFolded],
		Entity:   string(body[nFolded+nOrig:]),
	}, nil
}
