// Package preprocess prepares a photo for the two downstream consumers: a
// fixed-size color copy for the image classifier and a binarized copy for
// the printed-text OCR engine.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/utils"
)

// ErrEmptyImage is returned for nil images or images without pixels.
var ErrEmptyImage = errors.New("empty image")

// Pair holds the two buffers produced for one image.
type Pair struct {
	Resized   *image.NRGBA
	Binarized *image.Gray
}

// Empty reports whether the pair carries no buffers (the skip signal).
func (p Pair) Empty() bool {
	return p.Resized == nil && p.Binarized == nil
}

// Preprocessor runs the resize / grayscale / blur / threshold / closing chain.
// It holds no mutable state and is safe for concurrent use.
type Preprocessor struct {
	cfg Config
}

// New creates a Preprocessor. Invalid settings are replaced by defaults.
func New(cfg Config) *Preprocessor {
	if err := cfg.Validate(); err != nil {
		slog.Warn("Invalid preprocess config, using defaults", "error", err)
		cfg = DefaultConfig()
	}
	return &Preprocessor{cfg: cfg}
}

// Config returns the effective configuration.
func (p *Preprocessor) Config() Config { return p.cfg }

// Process produces the classifier copy and the OCR copy of img. On any
// failure it returns an empty Pair together with an *utils.ImageProcessingError;
// callers skip the image.
func (p *Preprocessor) Process(ctx context.Context, img image.Image) (pair Pair, err error) {
	defer func() {
		if r := recover(); r != nil {
			pair = Pair{}
			err = &utils.ImageProcessingError{Operation: "preprocess", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if img == nil || img.Bounds().Empty() {
		return Pair{}, &utils.ImageProcessingError{Operation: "preprocess", Err: ErrEmptyImage}
	}

	start := time.Now()
	stages := []struct {
		name string
		run  func()
	}{
		{"resize", func() {
			pair.Resized = imaging.Resize(img, p.cfg.TargetSize, p.cfg.TargetSize, imaging.Lanczos)
		}},
		{"grayscale", func() { pair.Binarized = Grayscale(img) }},
		{"blur", func() { pair.Binarized = GaussianBlur(pair.Binarized, p.cfg.BlurKernel) }},
		{"threshold", func() {
			pair.Binarized = AdaptiveThreshold(pair.Binarized, p.cfg.ThresholdBlockSize, p.cfg.ThresholdC)
		}},
		{"closing", func() {
			pair.Binarized = Morph(pair.Binarized, MorphClosing, p.cfg.CloseKernel, p.cfg.CloseIterations)
		}},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return Pair{}, &utils.ImageProcessingError{Operation: st.name, Err: err}
		}
		st.run()
	}

	slog.Debug("Image preprocessed",
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"duration_ms", time.Since(start).Milliseconds())
	return pair, nil
}
