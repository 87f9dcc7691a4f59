package compose

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var normalizeNewlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

var stripNewlines = strings.NewReplacer("\r\n", "", "\r", "", "\n", "")

// FormatBody renders a caller-supplied body as compose HTML. Plain text is
// escaped and its line breaks become <br>; HTML has its raw newlines removed,
// since the compose renderer turns each one into a line break. Either way,
// non-ASCII characters are written as numeric character references.
func FormatBody(body string, isHTML bool) string {
	if isHTML {
		return EncodeNonASCII(stripNewlines.Replace(body))
	}
	return EncodeNonASCII(TextToHTML(body))
}

// TextToHTML escapes s and converts its line breaks to <br>. CR and CRLF
// are folded to LF first, since the escaper turns CR into &#13;.
func TextToHTML(s string) string {
	escaped := html.EscapeString(normalizeNewlines.Replace(s))
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// EncodeNonASCII replaces every code point above U+007F with &#N;.
func EncodeNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		b.WriteString("&#")
		b.WriteString(strconv.Itoa(int(r)))
		b.WriteByte(';')
	}
	return b.String()
}

// HTMLToText extracts readable text from an HTML body, turning block
// boundaries into newlines.
func HTMLToText(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br":
				b.WriteByte('\n')
			case "script", "style", "head":
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "p", "div", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteByte('\n')
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			}
		}
	}
}
