package pipeline

import (
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
)

func cands(origin ingredient.Origin, names ...string) []ingredient.Candidate {
	out := make([]ingredient.Candidate, len(names))
	for i, n := range names {
		out[i] = ingredient.Candidate{Name: n, Origin: origin}
	}
	return out
}

func TestAggregator_Result(t *testing.T) {
	a := NewAggregator()
	a.Add(0, cands(ingredient.OriginText, "tomato", "onion"))
	a.Add(1, cands(ingredient.OriginClassifier, "onion"))
	a.Add(2, nil)
	a.Add(3, cands(ingredient.OriginText, "none", "", "unknown", "basil"))

	assert.Equal(t, "basil, onion, tomato", a.Result())
	assert.Equal(t, 3, a.Set().Len())
}

func TestIngredientSet_AddSplitsDelimitedNames(t *testing.T) {
	set := make(IngredientSet)
	set.Add("tomato, none")
	set.Add("unknown,basil")
	set.Add(" , ")
	assert.Equal(t, []string{"basil", "tomato"}, set.Sorted())
	for _, tok := range strings.Split(set.String(), ", ") {
		assert.False(t, ingredient.IsSentinel(tok), "token %q", tok)
	}
}

func TestAggregator_EmptyBatch(t *testing.T) {
	assert.Equal(t, "", NewAggregator().Result())
	assert.Empty(t, NewAggregator().Set().Sorted())
}

func TestAggregator_AddReplacesIndex(t *testing.T) {
	a := NewAggregator()
	a.Add(0, cands(ingredient.OriginText, "salt"))
	a.Add(0, cands(ingredient.OriginText, "pepper"))
	assert.Equal(t, "pepper", a.Result())
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	a := NewAggregator()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Add(i, cands(ingredient.OriginText, "rice", "beans"))
		}()
	}
	wg.Wait()
	assert.Equal(t, "beans, rice", a.Result())
}

func TestIngredientSet_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	sentinels := []string{"none", "unknown", "", "  "}

	properties.Property("sorted output is unique, ordered and sentinel-free", prop.ForAll(
		func(names []string) bool {
			set := make(IngredientSet)
			for i, n := range names {
				if i%3 == 0 {
					set.Add(sentinels[i%len(sentinels)])
				}
				set.Add(n)
			}
			out := set.Sorted()
			if !slices.IsSorted(out) {
				return false
			}
			for i, n := range out {
				if ingredient.IsSentinel(n) {
					return false
				}
				if i > 0 && out[i-1] == n {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("insertion order does not matter", prop.ForAll(
		func(names []string) bool {
			fwd, rev := make(IngredientSet), make(IngredientSet)
			for i := range names {
				fwd.Add(names[i])
				rev.Add(names[len(names)-1-i])
			}
			return fwd.String() == rev.String()
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
