package ingredient

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput is returned for blank text; no request is made.
	ErrEmptyInput = errors.New("empty categorization input")
	// ErrEmptyResponse is returned when the service answers without content.
	ErrEmptyResponse = errors.New("empty categorization response")
)

// Categorizer extracts a single ingredient name from free text, or answers
// "none" when the text names no ingredient.
type Categorizer interface {
	Categorize(ctx context.Context, text string) (string, error)
}

// CategorizerFunc adapts a function to Categorizer.
type CategorizerFunc func(ctx context.Context, text string) (string, error)

func (f CategorizerFunc) Categorize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}
