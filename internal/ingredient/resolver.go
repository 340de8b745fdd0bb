package ingredient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/metrics"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/textclean"
)

// DefaultRequestTimeout bounds a single categorization call.
const DefaultRequestTimeout = 30 * time.Second

// Resolver maps OCR fragments to canonical ingredient candidates.
type Resolver struct {
	categorizer Categorizer
	stripper    *ModifierStripper
	sem         *semaphore.Weighted
	concurrency int
	timeout     time.Duration
	log         *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency bounds the number of in-flight categorization calls.
// Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// WithModifiers replaces the leading modifier words that are stripped.
func WithModifiers(words []string) Option {
	return func(r *Resolver) { r.stripper = NewModifierStripper(words) }
}

// WithRequestTimeout sets the per-fragment timeout. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithLogger sets the logger used for skipped fragments.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResolver creates a Resolver backed by c.
func NewResolver(c Categorizer, opts ...Option) *Resolver {
	r := &Resolver{
		categorizer: c,
		stripper:    NewModifierStripper(DefaultModifiers),
		concurrency: 1,
		timeout:     DefaultRequestTimeout,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.sem = semaphore.NewWeighted(int64(r.concurrency))
	return r
}

// Concurrency returns the in-flight call bound.
func (r *Resolver) Concurrency() int { return r.concurrency }

// Resolve categorizes every distinct non-empty fragment and returns the
// sorted set of names it produced. Failed fragments are skipped.
func (r *Resolver) Resolve(ctx context.Context, fragments []string) []Candidate {
	if r == nil || r.categorizer == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(fragments))
	var distinct []string
	for _, c := range textclean.CleanAll(fragments) {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		distinct = append(distinct, c)
	}
	if len(distinct) == 0 {
		return nil
	}

	var (
		mu    sync.Mutex
		names = make(map[string]struct{})
		wg    sync.WaitGroup
	)
	for _, text := range distinct {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.log.Warn("Categorization stopped", "error", err, "remaining", len(distinct))
			break
		}
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			defer r.sem.Release(1)

			name, ok := r.resolveOne(ctx, text)
			if !ok {
				return
			}
			mu.Lock()
			names[name] = struct{}{}
			mu.Unlock()
		}(text)
	}
	wg.Wait()

	cands := make([]Candidate, 0, len(names))
	for n := range names {
		cands = append(cands, Candidate{Name: n, Origin: OriginText})
	}
	return SortCandidates(cands)
}

func (r *Resolver) resolveOne(ctx context.Context, text string) (string, bool) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	answer, err := r.categorizer.Categorize(callCtx, text)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.RecordCategorization(outcome)
		r.log.Warn("Categorization failed, skipping fragment",
			"error", err, "text_len", len(text))
		return "", false
	}

	name, ok := r.stripper.Canonicalize(answer)
	if !ok {
		metrics.RecordCategorization("none")
		return "", false
	}
	metrics.RecordCategorization("ok")
	return name, true
}
