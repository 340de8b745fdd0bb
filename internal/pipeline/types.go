package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/utils"
)

// ErrNoImages signals an empty batch. Run does not return it; callers use
// it to report usage problems.
var ErrNoImages = errors.New("no images provided")

// ImageState is the furthest stage an image reached.
type ImageState string

const (
	StateLoaded       ImageState = "loaded"
	StatePreprocessed ImageState = "preprocessed"
	StateOCRDone      ImageState = "ocr_done"
	StateResolved     ImageState = "resolved"
	StateClassified   ImageState = "classified"
	StateDone         ImageState = "done"
	StateSkipped      ImageState = "skipped"
)

// StageError records which stage stopped an image.
type StageError struct {
	Stage string
	Index int
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("image %d (%s): %s: %v", e.Index, e.Path, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ImageHandle is a loaded image owned by one processing call.
type ImageHandle struct {
	Path  string
	Index int
	Image image.Image
	Meta  utils.ImageMetadata
}

// Release drops the pixel data and removes the backing file when it follows
// the temp naming policy.
func (h *ImageHandle) Release(policy TempPolicy) {
	h.Image = nil
	releasePath(h.Path, policy)
}

func releasePath(path string, policy TempPolicy) {
	if !policy.Remove || path == "" {
		return
	}
	removed, err := utils.RemoveTempFile(path, policy.Prefix)
	if err != nil {
		slog.Warn("Failed to remove temp file", "path", path, "error", err)
		return
	}
	if removed {
		slog.Debug("Removed temp file", "path", path)
	}
}

// ImageResult is the outcome for one image.
type ImageResult struct {
	Index        int                    `json:"index"         yaml:"index"`
	Path         string                 `json:"path"          yaml:"path"`
	State        ImageState             `json:"state"         yaml:"state"`
	Candidates   []ingredient.Candidate `json:"candidates"    yaml:"candidates"`
	Fragments    int                    `json:"fragments"     yaml:"fragments"`
	UsedFallback bool                   `json:"used_fallback" yaml:"used_fallback"`
	Err          error                  `json:"-"             yaml:"-"`
	Error        string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Duration     time.Duration          `json:"duration_ns"   yaml:"duration_ns"`
}

// Skipped reports whether the image contributed nothing because of a failure.
func (r ImageResult) Skipped() bool { return r.State == StateSkipped }

// BatchResult is the outcome of one Run.
type BatchResult struct {
	Ingredients string        `json:"ingredients" yaml:"ingredients"`
	Names       []string      `json:"names"       yaml:"names"`
	Images      []ImageResult `json:"images"      yaml:"images"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Processed counts images that finished without being skipped.
func (b *BatchResult) Processed() int {
	n := 0
	for _, r := range b.Images {
		if !r.Skipped() {
			n++
		}
	}
	return n
}

// Skipped counts skipped images.
func (b *BatchResult) Skipped() int { return len(b.Images) - b.Processed() }

func skippedResult(index int, path, stage string, err error) ImageResult {
	serr := &StageError{Stage: stage, Index: index, Path: path, Err: err}
	return ImageResult{
		Index: index,
		Path:  path,
		State: StateSkipped,
		Err:   serr,
		Error: serr.Error(),
	}
}
