package scene

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Charset maps recognizer class indices to tokens. Class 0 is the CTC blank,
// so class i corresponds to Tokens[i-1].
type Charset struct {
	Tokens []string
}

// LoadCharset reads a dictionary with one token per line. A trailing space
// token is appended, matching models trained with space as a class.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	var tokens []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("dictionary is empty: %s", path)
	}
	return &Charset{Tokens: append(tokens, " ")}, nil
}

// Classes is the number of recognizer outputs including the blank.
func (c *Charset) Classes() int { return len(c.Tokens) + 1 }

// Decode maps collapsed class indices to text, skipping the blank and any
// out-of-range index.
func (c *Charset) Decode(indices []int) string {
	var sb strings.Builder
	for _, idx := range indices {
		if idx <= 0 || idx > len(c.Tokens) {
			continue
		}
		sb.WriteString(c.Tokens[idx-1])
	}
	return sb.String()
}
