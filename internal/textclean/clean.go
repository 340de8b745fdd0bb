// Package textclean strips OCR noise from recognized text.
package textclean

import (
	"regexp"
	"strings"
)

var disallowed = regexp.MustCompile(`[^A-Za-z0-9\s]`)

// Clean removes every character outside ASCII letters, digits and whitespace,
// then trims surrounding whitespace. Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	return strings.TrimSpace(disallowed.ReplaceAllString(s, ""))
}

// CleanAll cleans each fragment in order and drops the ones that end up empty.
func CleanAll(fragments []string) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if c := Clean(f); c != "" {
			out = append(out, c)
		}
	}
	return out
}
