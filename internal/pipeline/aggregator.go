package pipeline

import (
	"slices"
	"strings"
	"sync"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
)

// IngredientSet is a set of canonical ingredient names.
type IngredientSet map[string]struct{}

// Add inserts name unless it is empty or a sentinel. A name holding the ", "
// delimiter is split so every token of the joined output is checked.
func (s IngredientSet) Add(name string) {
	for _, tok := range strings.Split(name, ",") {
		tok = strings.TrimSpace(tok)
		if ingredient.IsSentinel(tok) {
			continue
		}
		s[tok] = struct{}{}
	}
}

// Len returns the number of names.
func (s IngredientSet) Len() int { return len(s) }

// Sorted returns the names in lexicographic order.
func (s IngredientSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		if ingredient.IsSentinel(n) {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (s IngredientSet) String() string {
	return strings.Join(s.Sorted(), ", ")
}

// Aggregator merges per-image candidates across a batch. Add is safe to call
// from concurrent workers.
type Aggregator struct {
	mu      sync.Mutex
	byImage map[int][]ingredient.Candidate
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byImage: make(map[int][]ingredient.Candidate)}
}

// Add records the candidates selected for one image. Adding the same index
// twice replaces the earlier entry.
func (a *Aggregator) Add(index int, cands []ingredient.Candidate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byImage[index] = slices.Clone(cands)
}

// Set returns the union of all recorded names.
func (a *Aggregator) Set() IngredientSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	set := make(IngredientSet)
	for _, cands := range a.byImage {
		for _, c := range cands {
			set.Add(c.Name)
		}
	}
	return set
}

// Result returns the sorted names joined with ", ". It is "" for an empty
// or fully skipped batch.
func (a *Aggregator) Result() string { return a.Set().String() }
