package ingredient

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// StaticCategorizer answers from a fixed keyword table. It needs no network
// and backs offline runs and tests.
type StaticCategorizer struct {
	entries map[string]string // normalized keyword -> ingredient name
	keys    []string          // longest first, then lexicographic
}

// NewStaticCategorizer builds a categorizer from keyword -> name pairs.
// An empty name maps the keyword to itself.
func NewStaticCategorizer(table map[string]string) *StaticCategorizer {
	s := &StaticCategorizer{entries: make(map[string]string, len(table))}
	for k, v := range table {
		nk := normalizeWords(k)
		if nk == "" {
			continue
		}
		if strings.TrimSpace(v) == "" {
			v = nk
		}
		s.entries[nk] = v
	}
	for k := range s.entries {
		s.keys = append(s.keys, k)
	}
	slices.SortFunc(s.keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return s
}

// LoadStaticDictionary reads a YAML mapping of keyword to ingredient name.
func LoadStaticDictionary(path string) (*StaticCategorizer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: dictionary path comes from config
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	var table map[string]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	return NewStaticCategorizer(table), nil
}

// Len returns the number of keywords.
func (s *StaticCategorizer) Len() int { return len(s.keys) }

// Categorize matches the whole text first, then the longest keyword that
// appears as whole words inside it. Unmatched text answers "none".
func (s *StaticCategorizer) Categorize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	norm := normalizeWords(text)
	if norm == "" {
		return "", ErrEmptyInput
	}
	if v, ok := s.entries[norm]; ok {
		return v, nil
	}
	padded := " " + norm + " "
	for _, k := range s.keys {
		if strings.Contains(padded, " "+k+" ") {
			return s.entries[k], nil
		}
	}
	return SentinelNone, nil
}

func normalizeWords(s string) string {
	return strings.Join(strings.Fields(Lower(s)), " ")
}
