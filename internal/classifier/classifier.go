// Package classifier provides the whole-image food classifier used when OCR
// yields no ingredient.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/mempool"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/onnx"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/utils"
)

// UnknownLabel is returned whenever no prediction could be made.
const UnknownLabel = "unknown"

// DefaultThreshold is the confidence a prediction must exceed to be used.
const DefaultThreshold = 0.5

// ErrUnavailable is returned by Init when the model could not be loaded.
var ErrUnavailable = errors.New("classifier unavailable")

// State is the lifecycle state, decided once at initialization.
type State int

const (
	StateUnavailable State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "unavailable"
}

// Config configures the classifier.
type Config struct {
	Enabled    bool       `mapstructure:"enabled"     yaml:"enabled"     json:"enabled"`
	ModelPath  string     `mapstructure:"model_path"  yaml:"model_path"  json:"model_path"`
	LabelsPath string     `mapstructure:"labels_path" yaml:"labels_path" json:"labels_path"`
	Threshold  float64    `mapstructure:"threshold"   yaml:"threshold"   json:"threshold"`
	NumThreads int        `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	Mean       [3]float32 `mapstructure:"mean"        yaml:"mean"        json:"mean"`
	Std        [3]float32 `mapstructure:"std"         yaml:"std"         json:"std"`

	LibraryPath string         `mapstructure:"-" yaml:"-" json:"-"`
	GPU         onnx.GPUConfig `mapstructure:"-" yaml:"-" json:"-"`
}

// DefaultConfig returns defaults for a ViT-style food classifier export.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		ModelPath:  "classifier/model.onnx",
		LabelsPath: "classifier/config.json",
		Threshold:  DefaultThreshold,
		Mean:       [3]float32{0.5, 0.5, 0.5},
		Std:        [3]float32{0.5, 0.5, 0.5},
		GPU:        onnx.DefaultGPUConfig(),
	}
}

// Result is one prediction.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Unknown is the "no determination" result.
func Unknown() Result { return Result{Label: UnknownLabel} }

// model is the part of *onnx.Session the classifier needs.
type model interface {
	Run(ctx context.Context, t onnx.Tensor) (onnx.Output, error)
	InputShape() []int64
	Close() error
}

// loader produces the model and labels; replaced in tests.
type loader func(cfg Config) (model, []string, error)

// Classifier wraps an ONNX image classifier. Loading happens at most once;
// a failed load leaves the classifier permanently unavailable and every
// Classify call answers Unknown.
type Classifier struct {
	cfg  Config
	load loader

	once    sync.Once
	state   State
	initErr error
	model   model
	labels  []string
	inW     int
	inH     int
}

// New creates a classifier. It never fails; the model is loaded on the first
// Init or Classify call.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, load: loadModel}
}

// Init loads the model once and returns the cached outcome.
func (c *Classifier) Init(ctx context.Context) error {
	c.once.Do(func() {
		if err := ctx.Err(); err != nil {
			c.initErr = fmt.Errorf("%w: %w", ErrUnavailable, err)
			return
		}
		if !c.cfg.Enabled {
			c.initErr = fmt.Errorf("%w: disabled", ErrUnavailable)
			slog.Info("Image classifier disabled")
			return
		}
		m, labels, err := c.load(c.cfg)
		if err != nil {
			c.initErr = fmt.Errorf("%w: %w", ErrUnavailable, err)
			slog.Warn("Image classifier unavailable, fallback disabled",
				"model", c.cfg.ModelPath, "error", err)
			return
		}
		c.inH, c.inW = 224, 224
		if shape := m.InputShape(); len(shape) == 4 && shape[2] > 0 && shape[3] > 0 {
			c.inH, c.inW = int(shape[2]), int(shape[3])
		}
		c.model, c.labels, c.state = m, labels, StateReady
		slog.Info("Image classifier ready",
			"model", c.cfg.ModelPath,
			"labels", len(labels),
			"input_width", c.inW,
			"input_height", c.inH)
	})
	return c.initErr
}

// State reports the lifecycle state. It triggers initialization.
func (c *Classifier) State() State {
	_ = c.Init(context.Background())
	return c.state
}

// Available reports whether predictions can be made.
func (c *Classifier) Available() bool { return c.State() == StateReady }

// Labels returns the class labels of a ready classifier.
func (c *Classifier) Labels() []string {
	if !c.Available() {
		return nil
	}
	return append([]string(nil), c.labels...)
}

// Classify predicts the most likely label for img. Any failure yields
// Unknown for this call only.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (res Result) {
	if err := c.Init(ctx); err != nil {
		return Unknown()
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Classifier panic recovered", "panic", r)
			res = Unknown()
		}
	}()

	res, err := c.classify(ctx, img)
	if err != nil {
		slog.Warn("Classification failed", "error", err)
		return Unknown()
	}
	return res
}

func (c *Classifier) classify(ctx context.Context, img image.Image) (Result, error) {
	rgb, err := utils.ToRGB(img)
	if err != nil {
		return Result{}, err
	}
	resized := imaging.Resize(rgb, c.inW, c.inH, imaging.Lanczos)
	data, w, h, err := utils.NormalizeImage(resized, utils.Normalization{Mean: c.cfg.Mean, Std: c.cfg.Std})
	if err != nil {
		return Result{}, err
	}
	defer mempool.PutFloat32(data)
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return Result{}, err
	}

	out, err := c.model.Run(ctx, tensor)
	if err != nil {
		return Result{}, fmt.Errorf("forward pass: %w", err)
	}
	if len(out.Data) == 0 {
		return Result{}, errors.New("empty logits")
	}

	probs := onnx.Softmax(out.Data)
	idx, conf := onnx.Argmax(probs)
	if idx < 0 || idx >= len(c.labels) {
		return Result{}, fmt.Errorf("class index %d outside %d labels", idx, len(c.labels))
	}
	return Result{Label: c.labels[idx], Confidence: conf}, nil
}

// Accept returns the lower-cased label when the prediction is confident
// enough (strictly above threshold) and not "unknown".
func Accept(r Result, threshold float64) (string, bool) {
	label := strings.ToLower(strings.TrimSpace(r.Label))
	if label == "" || label == UnknownLabel || !(r.Confidence > threshold) {
		return "", false
	}
	return label, true
}

// Close releases the model session.
func (c *Classifier) Close() error {
	if c.model == nil {
		return nil
	}
	return c.model.Close()
}

func loadModel(cfg Config) (model, []string, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, nil, fmt.Errorf("model file: %w", err)
	}
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, nil, err
	}
	sess, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.LibraryPath,
		NumThreads:  cfg.NumThreads,
		GPU:         cfg.GPU,
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, labels, nil
}
