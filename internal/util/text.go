package util

import (
	"regexp"
	"strings"
)

var reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHeader canonicalizes a spreadsheet column header for lookup:
// lowercase with punctuation and whitespace runs squashed to single spaces.
// "Donation Value ($)" and "donation  value" resolve to the same key.
func NormalizeHeader(input string) string {
	s := strings.ToLower(input)
	return strings.TrimSpace(reNonAlnum.ReplaceAllString(s, " "))
}

// Slugify builds a filename-safe fragment from a line item title.
func Slugify(input string) string {
	s := strings.ToLower(input)
	s = reNonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	if len(s) > 60 {
		s = strings.Trim(s[:60], "-")
	}
	return s
}

// SplitList breaks a delimited cell such as "Dining; Gift Cards, Travel"
// into trimmed non-empty parts.
func SplitList(input string) []string {
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
