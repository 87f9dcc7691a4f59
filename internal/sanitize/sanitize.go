// Package sanitize holds the text transforms applied at the two transport
// boundaries: the line-delimited JSON-RPC stream and the HTTP response body.
package sanitize

import (
	"strings"
	"unicode/utf16"
)

// isDisallowedControl reports whether c is a control character that is never
// allowed through either boundary. Tab, line feed and carriage return are kept.
func isDisallowedControl(c rune) bool {
	switch {
	case c <= 0x08:
		return true
	case c == 0x0B || c == 0x0C:
		return true
	case c >= 0x0E && c <= 0x1F:
		return true
	case c == 0x7F:
		return true
	}
	return false
}

// StripControl removes disallowed control characters from s.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if isDisallowedControl(r) {
			return -1
		}
		return r
	}, s)
}

// LineProtocol repairs a JSON text received from the far side so that it can
// be parsed and written as a single line: disallowed control characters are
// dropped, then raw CR, LF and TAB that are not already preceded by a
// backslash are replaced with their two-character escapes.
func LineProtocol(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range StripControl(s) {
		escaped := prev == '\\'
		switch {
		case r == '\r' && !escaped:
			b.WriteString(`\r`)
			prev = 'r'
			continue
		case r == '\n' && !escaped:
			b.WriteString(`\n`)
			prev = 'n'
			continue
		case r == '\t' && !escaped:
			b.WriteString(`\t`)
			prev = 't'
			continue
		}

		b.WriteRune(r)
		prev = r
	}

	return b.String()
}

// ForTransport prepares s for a host writer that emits every code unit of a
// string as one raw byte. Disallowed control characters are dropped, ASCII is
// passed through, and every other code point is replaced by the bytes of its
// UTF-8 encoding, each byte carried as one code point in U+0080..U+00FF.
//
// The input is processed as UTF-16 code units, so supplementary characters
// arrive as surrogate pairs and are recombined before encoding.
func ForTransport(s string) string {
	return encodeUnits(utf16.Encode([]rune(StripControl(s))))
}

func encodeUnits(units []uint16) string {
	var b strings.Builder
	b.Grow(len(units))

	emit := func(c uint32) {
		b.WriteRune(rune(c))
	}

	for i := 0; i < len(units); i++ {
		u := uint32(units[i])

		switch {
		case u < 0x80:
			if isDisallowedControl(rune(u)) {
				continue
			}
			emit(u)

		case u < 0x800:
			emit(0xC0 | (u >> 6))
			emit(0x80 | (u & 0x3F))

		case u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] <= 0xDFFF:
			lo := uint32(units[i+1])
			i++
			cp := 0x10000 + ((u - 0xD800) << 10) + (lo - 0xDC00)
			emit(0xF0 | (cp >> 18))
			emit(0x80 | ((cp >> 12) & 0x3F))
			emit(0x80 | ((cp >> 6) & 0x3F))
			emit(0x80 | (cp & 0x3F))

		case u >= 0xD800 && u <= 0xDFFF:
			// Lone surrogate: encode U+FFFD.
			emit(0xEF)
			emit(0xBF)
			emit(0xBD)

		default:
			emit(0xE0 | (u >> 12))
			emit(0x80 | ((u >> 6) & 0x3F))
			emit(0x80 | (u & 0x3F))
		}
	}

	return b.String()
}

// RawBytes writes s the way the host raw writer does: each code point becomes
// one byte holding its low eight bits.
func RawBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out
}
