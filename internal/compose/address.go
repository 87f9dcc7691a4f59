package compose

import (
	"strings"

	"github.com/emersion/go-message/mail"
)

// SplitAddresses splits an address list on commas that are not inside a
// quoted display name, so `"Last, First" <a@b>` stays one entry. Empty
// entries are dropped.
func SplitAddresses(list string) []string {
	var (
		parts   []string
		current strings.Builder
		quoted  bool
		escaped bool
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, s)
		}
		current.Reset()
	}

	for _, r := range list {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()

	return parts
}

// ExtractAddress returns the bare address of one list entry.
func ExtractAddress(entry string) string {
	entry = strings.TrimSpace(entry)
	if addr, err := mail.ParseAddress(entry); err == nil {
		return addr.Address
	}
	if start := strings.LastIndex(entry, "<"); start >= 0 {
		if end := strings.Index(entry[start:], ">"); end > 0 {
			return strings.TrimSpace(entry[start+1 : start+end])
		}
	}
	return strings.Trim(entry, `"' `)
}

// Addresses returns the bare addresses of every entry in the given lists.
func Addresses(lists ...string) []string {
	var out []string
	for _, list := range lists {
		for _, entry := range SplitAddresses(list) {
			if addr := ExtractAddress(entry); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

// ReplyAllCc computes the Cc list of a reply-all: the union of the original
// recipients and Cc, minus the sender's own addresses and anything already
// addressed in To, de-duplicated case-insensitively in first-seen order.
func ReplyAllCc(recipients, ccList string, own []string, to []string) []string {
	seen := make(map[string]bool)
	for _, addr := range own {
		seen[strings.ToLower(addr)] = true
	}
	for _, addr := range to {
		seen[strings.ToLower(addr)] = true
	}

	var cc []string
	for _, addr := range Addresses(recipients, ccList) {
		key := strings.ToLower(addr)
		if seen[key] {
			continue
		}
		seen[key] = true
		cc = append(cc, addr)
	}
	return cc
}

// JoinAddresses merges address lists, dropping case-insensitive duplicates.
func JoinAddresses(lists ...string) string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, entry := range SplitAddresses(list) {
			key := strings.ToLower(ExtractAddress(entry))
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, entry)
		}
	}
	return strings.Join(out, ", ")
}
