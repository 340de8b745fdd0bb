// Package support holds the step definitions for the ingredient scenarios.
// Scenarios drive the real pipeline; only the OCR engines, the categorizer
// and, where a scenario says so, the classifier are stubbed.
package support

import (
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/classifier"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/preprocess"
)

// World is the state of one scenario.
type World struct {
	Dir string

	photos  []string
	labels  map[int]string // photo width -> label text
	answers map[string]string

	classifier pipeline.ImageClassifier
	stubCls    *stubClassifier

	Result *pipeline.BatchResult
	Err    error
}

// NewWorld creates a scenario world rooted in a fresh temp directory.
func NewWorld() (*World, error) {
	dir, err := os.MkdirTemp("", "pantry-scenario-")
	if err != nil {
		return nil, err
	}
	return &World{
		Dir:     dir,
		labels:  make(map[int]string),
		answers: make(map[string]string),
	}, nil
}

// Cleanup removes the scenario directory.
func (w *World) Cleanup() error {
	return os.RemoveAll(w.Dir)
}

// nextWidth gives every photo a distinct width, which is how the stub OCR
// engine tells photos apart.
func (w *World) nextWidth() int {
	return 40 + 10*len(w.photos)
}

func (w *World) path(name string) string {
	return filepath.Join(w.Dir, name)
}

func (w *World) build(workers int) (*pipeline.Pipeline, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := pipeline.DefaultConfig()
	cfg.Workers = workers

	return pipeline.New(cfg, pipeline.Capabilities{
		Preprocessor: preprocess.New(preprocess.DefaultConfig()),
		OCR:          labelOCR{labels: w.labels},
		Resolver:     ingredient.NewResolver(answerTable(w.answers), ingredient.WithLogger(logger)),
		Classifier:   w.classifier,
	})
}

// labelOCR returns the label registered for an image's width as engine A text.
type labelOCR struct {
	labels map[int]string
}

func (l labelOCR) Extract(_ context.Context, _ *image.Gray, orig image.Image) ocr.Output {
	return ocr.Output{Text: l.labels[orig.Bounds().Dx()]}
}

// answerTable answers registered fragments and "none" otherwise.
type answerTable map[string]string

func (a answerTable) Categorize(_ context.Context, text string) (string, error) {
	if ans, ok := a[text]; ok {
		return ans, nil
	}
	return ingredient.SentinelNone, nil
}

// stubClassifier returns a fixed prediction and counts calls.
type stubClassifier struct {
	result classifier.Result
	calls  atomic.Int32
}

func (s *stubClassifier) Classify(context.Context, image.Image) classifier.Result {
	s.calls.Add(1)
	return s.result
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // G304: scenario files live in the scenario temp dir
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
