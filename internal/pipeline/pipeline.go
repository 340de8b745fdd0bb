// Package pipeline turns a batch of food photos into one deduplicated,
// sorted ingredient list. Each image runs through preprocessing, dual OCR,
// ingredient resolution and, when OCR finds nothing, the image classifier.
// Failures are contained per image.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/classifier"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/metrics"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/preprocess"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/utils"
)

// ImagePreprocessor produces the classifier and OCR views of an image.
type ImagePreprocessor interface {
	Process(ctx context.Context, img image.Image) (preprocess.Pair, error)
}

// Extractor runs OCR over the two preprocessed views of an image.
type Extractor interface {
	Extract(ctx context.Context, binarized *image.Gray, original image.Image) ocr.Output
}

// IngredientResolver maps text fragments to ingredient candidates.
type IngredientResolver interface {
	Resolve(ctx context.Context, fragments []string) []ingredient.Candidate
}

// ImageClassifier predicts a label for a whole image.
type ImageClassifier interface {
	Classify(ctx context.Context, img image.Image) classifier.Result
}

// Capabilities are the collaborators a Pipeline is built from.
type Capabilities struct {
	Preprocessor ImagePreprocessor  // required
	OCR          Extractor          // required
	Resolver     IngredientResolver // required
	Classifier   ImageClassifier    // optional; nil disables the fallback
}

// TempPolicy decides which input files are deleted after processing.
type TempPolicy struct {
	Prefix string // base-name prefix marking a file as disposable
	Remove bool
}

// Config controls batch execution.
type Config struct {
	Workers             int              // <=1 processes images sequentially
	ClassifierThreshold float64          // fallback label must be strictly more confident
	ImageTimeout        time.Duration    // 0 = no per-image deadline
	TempPolicy          TempPolicy       // temp-file cleanup
	Progress            ProgressCallback // optional
}

// DefaultConfig returns sequential processing with the standard threshold.
func DefaultConfig() Config {
	return Config{
		Workers:             1,
		ClassifierThreshold: classifier.DefaultThreshold,
		TempPolicy:          TempPolicy{Prefix: "temp_", Remove: true},
	}
}

// Pipeline processes image batches. It is safe for concurrent use when its
// capabilities are.
type Pipeline struct {
	cfg  Config
	caps Capabilities
}

// New validates the capabilities and returns a Pipeline.
func New(cfg Config, caps Capabilities) (*Pipeline, error) {
	if caps.Preprocessor == nil {
		return nil, errors.New("pipeline: preprocessor is required")
	}
	if caps.OCR == nil {
		return nil, errors.New("pipeline: OCR extractor is required")
	}
	if caps.Resolver == nil {
		return nil, errors.New("pipeline: ingredient resolver is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ClassifierThreshold < 0 || cfg.ClassifierThreshold > 1 {
		return nil, fmt.Errorf("pipeline: classifier threshold must be in [0,1], got %v", cfg.ClassifierThreshold)
	}
	if cfg.ImageTimeout < 0 {
		return nil, fmt.Errorf("pipeline: image timeout must not be negative, got %v", cfg.ImageTimeout)
	}
	return &Pipeline{cfg: cfg, caps: caps}, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// WithProgress returns a copy of the pipeline that reports to cb.
func (p *Pipeline) WithProgress(cb ProgressCallback) *Pipeline {
	cp := *p
	cp.cfg.Progress = cb
	return &cp
}

// Run processes every path and aggregates the result. Per-image failures are
// reported in BatchResult.Images; an error is returned only when ctx is
// already done before any work starts.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	progress := p.progress()
	progress.OnStart(len(paths))

	agg := NewAggregator()
	var results []ImageResult
	if p.cfg.Workers <= 1 || len(paths) <= 1 {
		results = p.runSequential(ctx, paths, agg, progress)
	} else {
		results = p.runParallel(ctx, paths, agg, progress)
	}

	set := agg.Set()
	res := &BatchResult{
		Ingredients: set.String(),
		Names:       set.Sorted(),
		Images:      results,
		Duration:    time.Since(start),
	}
	slog.Info("Batch processed",
		"images", len(paths),
		"processed", res.Processed(),
		"skipped", res.Skipped(),
		"ingredients", len(res.Names),
		"duration_ms", res.Duration.Milliseconds())
	progress.OnComplete(res)
	return res, nil
}

// Extract runs the batch and returns only the joined ingredient string.
func (p *Pipeline) Extract(ctx context.Context, paths []string) (string, error) {
	res, err := p.Run(ctx, paths)
	if err != nil {
		return "", err
	}
	return res.Ingredients, nil
}

func (p *Pipeline) runSequential(ctx context.Context, paths []string, agg *Aggregator, progress ProgressCallback) []ImageResult {
	results := make([]ImageResult, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			results[i] = p.skipUnprocessed(i, path, err)
		} else {
			results[i] = p.ProcessImage(ctx, i, path)
			agg.Add(i, results[i].Candidates)
		}
		progress.OnImageDone(i+1, len(paths), results[i])
	}
	return results
}

// skipUnprocessed reports an image that was never started and still applies
// the temp-file policy to it.
func (p *Pipeline) skipUnprocessed(index int, path string, err error) ImageResult {
	releasePath(path, p.cfg.TempPolicy)
	metrics.RecordImage(string(StateSkipped))
	return skippedResult(index, path, "dispatch", err)
}

// ProcessImage runs one image through every stage. It never panics and never
// returns an error: failures yield a SKIPPED result.
func (p *Pipeline) ProcessImage(ctx context.Context, index int, path string) (res ImageResult) {
	start := time.Now()
	log := slog.With("image_index", index, "path", path)

	defer func() {
		if r := recover(); r != nil {
			res = skippedResult(index, path, "panic", fmt.Errorf("%v", r))
		}
		res.Duration = time.Since(start)
		metrics.RecordImage(string(res.State))
		if res.Skipped() {
			log.Warn("Image skipped", "error", res.Err)
		} else {
			log.Debug("Image processed",
				"candidates", len(res.Candidates),
				"fallback", res.UsedFallback,
				"duration_ms", res.Duration.Milliseconds())
		}
	}()

	if p.cfg.ImageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ImageTimeout)
		defer cancel()
	}

	stageStart := time.Now()
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		releasePath(path, p.cfg.TempPolicy)
		return skippedResult(index, path, "load", err)
	}
	handle := &ImageHandle{Path: path, Index: index, Image: img, Meta: meta}
	defer handle.Release(p.cfg.TempPolicy)
	metrics.ObserveStage("load", time.Since(stageStart))

	return p.process(ctx, handle)
}

func (p *Pipeline) process(ctx context.Context, h *ImageHandle) ImageResult {
	res := ImageResult{Index: h.Index, Path: h.Path, State: StateLoaded}
	skip := func(stage string, err error) ImageResult {
		return skippedResult(h.Index, h.Path, stage, err)
	}

	stageStart := time.Now()
	pair, err := p.caps.Preprocessor.Process(ctx, h.Image)
	if err != nil {
		return skip("preprocess", err)
	}
	if pair.Empty() {
		return skip("preprocess", preprocess.ErrEmptyImage)
	}
	res.State = StatePreprocessed
	metrics.ObserveStage("preprocess", time.Since(stageStart))

	if err := ctx.Err(); err != nil {
		return skip("ocr", err)
	}
	stageStart = time.Now()
	out := p.caps.OCR.Extract(ctx, pair.Binarized, h.Image)
	texts := out.Texts()
	res.Fragments = len(texts)
	res.State = StateOCRDone
	metrics.ObserveStage("ocr", time.Since(stageStart))

	if err := ctx.Err(); err != nil {
		return skip("resolve", err)
	}
	stageStart = time.Now()
	res.Candidates = p.caps.Resolver.Resolve(ctx, texts)
	res.State = StateResolved
	metrics.ObserveStage("resolve", time.Since(stageStart))

	if len(res.Candidates) == 0 && p.caps.Classifier != nil {
		if err := ctx.Err(); err != nil {
			return skip("classify", err)
		}
		stageStart = time.Now()
		res.UsedFallback = true
		res.State = StateClassified
		pred := p.caps.Classifier.Classify(ctx, pair.Resized)
		metrics.ObserveStage("classify", time.Since(stageStart))
		if label, ok := classifier.Accept(pred, p.cfg.ClassifierThreshold); ok {
			metrics.RecordClassifierDecision("accepted")
			res.Candidates = []ingredient.Candidate{{Name: label, Origin: ingredient.OriginClassifier}}
		} else {
			metrics.RecordClassifierDecision("rejected")
		}
	}

	res.State = StateDone
	return res
}

func (p *Pipeline) progress() ProgressCallback {
	if p.cfg.Progress == nil {
		return NoOpProgressCallback{}
	}
	return p.cfg.Progress
}
