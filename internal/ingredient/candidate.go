// Package ingredient turns recognized text into canonical ingredient names
// through a pluggable categorization capability.
package ingredient

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sentinel answers meaning "no determination". They never reach results.
const (
	SentinelNone    = "none"
	SentinelUnknown = "unknown"
)

// Origin records which stage produced a candidate.
type Origin string

const (
	OriginText       Origin = "text"
	OriginClassifier Origin = "classifier"
)

// Candidate is a canonical ingredient name with its provenance.
type Candidate struct {
	Name   string `json:"name"`
	Origin Origin `json:"origin"`
}

// DefaultModifiers are the descriptive words stripped from the front of a name.
var DefaultModifiers = []string{"diced", "sliced", "fresh"}

// IsSentinel reports whether name is empty or a reserved "no answer" value.
func IsSentinel(name string) bool {
	n := strings.TrimSpace(name)
	return n == "" || strings.EqualFold(n, SentinelNone) || strings.EqualFold(n, SentinelUnknown)
}

// Lower lower-cases s. A new Caser is built per call since Casers are stateful.
func Lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// ModifierStripper removes leading descriptive modifiers such as "diced ".
type ModifierStripper struct {
	re *regexp.Regexp
}

// NewModifierStripper builds a stripper for the given words. Each word only
// matches when followed by whitespace, so "fresh" alone is kept as a name.
func NewModifierStripper(words []string) *ModifierStripper {
	var quoted []string
	for _, w := range words {
		if w = strings.TrimSpace(Lower(w)); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return &ModifierStripper{}
	}
	return &ModifierStripper{re: regexp.MustCompile(`^(?:` + strings.Join(quoted, "|") + `)\s+`)}
}

// Strip removes modifiers from the front of name until none is left.
func (m *ModifierStripper) Strip(name string) string {
	if m == nil || m.re == nil {
		return name
	}
	for {
		loc := m.re.FindStringIndex(name)
		if loc == nil {
			return name
		}
		name = strings.TrimSpace(name[loc[1]:])
	}
}

// Canonicalize turns a categorization answer into a name: lower-cased,
// trimmed of whitespace, quotes and a trailing period, modifiers removed.
// Only the first comma- or line-separated segment is kept, since a name must
// never carry the output delimiter. It returns false for sentinels and empty
// answers.
func (m *ModifierStripper) Canonicalize(answer string) (string, bool) {
	s := strings.TrimSpace(answer)
	if i := strings.IndexAny(s, ",\n\r"); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(Lower(s), " \t\"'`.")
	if IsSentinel(s) {
		return "", false
	}
	s = m.Strip(s)
	if IsSentinel(s) {
		return "", false
	}
	return s, true
}

// SortCandidates orders candidates by name, then origin.
func SortCandidates(cands []Candidate) []Candidate {
	slices.SortFunc(cands, func(a, b Candidate) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(string(a.Origin), string(b.Origin))
	})
	return cands
}
