package compose

import (
	"strings"
	"time"

	"github.com/mattt/mailbridge/internal/mailstore"
)

// QuoteDateLayout formats dates in quote and forward headers.
const QuoteDateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"

// ReplySubject prefixes subject with "Re: " unless it already has one.
func ReplySubject(subject string) string {
	return prefixSubject("Re: ", subject)
}

// ForwardSubject prefixes subject with "Fwd: " unless it already has one.
func ForwardSubject(subject string) string {
	return prefixSubject("Fwd: ", subject)
}

func prefixSubject(prefix, subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(subject), strings.ToLower(prefix)) {
		return subject
	}
	return prefix + subject
}

// ThreadHeaders returns the References and In-Reply-To values of a reply to
// original: its own message-id appended to its reference chain.
func ThreadHeaders(original *mailstore.Message) (references, inReplyTo string) {
	id := mailstore.NormalizeMessageID(original.MessageID)
	if id == "" {
		return "", ""
	}
	inReplyTo = "<" + id + ">"

	var chain []string
	for _, ref := range original.References {
		if ref = mailstore.NormalizeMessageID(ref); ref != "" && ref != id {
			chain = append(chain, "<"+ref+">")
		}
	}
	chain = append(chain, inReplyTo)
	return strings.Join(chain, " "), inReplyTo
}

// QuoteBlock renders the quoted original of a reply:
//
//	On <date>, <author> wrote:<br>&gt; line<br>&gt; line
func QuoteBlock(original *mailstore.Message) string {
	var b strings.Builder
	b.WriteString("On ")
	b.WriteString(formatDate(original.Date))
	b.WriteString(", ")
	b.WriteString(TextToHTML(original.Author))
	b.WriteString(" wrote:")

	for _, line := range bodyLines(original) {
		b.WriteString("<br>&gt; ")
		b.WriteString(TextToHTML(line))
	}

	return EncodeNonASCII(b.String())
}

// ForwardBlock renders the header block and body of a forwarded original.
func ForwardBlock(original *mailstore.Message) string {
	var b strings.Builder
	b.WriteString("-------- Forwarded Message --------")
	b.WriteString("<br>Subject: " + TextToHTML(original.Subject))
	b.WriteString("<br>Date: " + formatDate(original.Date))
	b.WriteString("<br>From: " + TextToHTML(original.Author))
	b.WriteString("<br>To: " + TextToHTML(original.Recipients))
	if original.CcList != "" {
		b.WriteString("<br>Cc: " + TextToHTML(original.CcList))
	}
	b.WriteString("<br><br>")
	b.WriteString(TextToHTML(originalText(original)))

	return EncodeNonASCII(b.String())
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "an unknown date"
	}
	return t.Format(QuoteDateLayout)
}

func originalText(m *mailstore.Message) string {
	if m.Body != "" {
		return m.Body
	}
	return HTMLToText(m.HTMLBody)
}

func bodyLines(m *mailstore.Message) []string {
	text := normalizeNewlines.Replace(originalText(m))
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}
