package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// SessionConfig describes how to load one model.
type SessionConfig struct {
	ModelPath   string
	LibraryPath string
	NumThreads  int
	GPU         GPUConfig
}

// Output is a copy of the first model output, safe to keep after the native
// tensors are released.
type Output struct {
	Data  []float32
	Shape []int64
}

// Session wraps a single-input, single-output dynamic ONNX session.
// Run is serialized so one Session can be shared by several workers.
type Session struct {
	mu      sync.Mutex
	session *onnxrt.DynamicAdvancedSession
	input   onnxrt.InputOutputInfo
	output  onnxrt.InputOutputInfo
	path    string
}

// NewSession validates the model file, initializes the runtime once and
// creates a session bound to the model's first input and output.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("empty model path")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if err := InitRuntime(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if len(in.Dimensions) != 4 {
		return nil, fmt.Errorf("expected 4D input, got %dD", len(in.Dimensions))
	}
	if in.DataType != onnxrt.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("expected float32 input, got %v", in.DataType)
	}

	opts, err := newSessionOptions(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	sess, err := onnxrt.NewDynamicAdvancedSession(cfg.ModelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	slog.Debug("ONNX session created",
		"model", cfg.ModelPath,
		"input", in.Name,
		"input_shape", in.Dimensions.String(),
		"output", out.Name)

	return &Session{session: sess, input: in, output: out, path: cfg.ModelPath}, nil
}

func newSessionOptions(cfg SessionConfig) (*onnxrt.SessionOptions, error) {
	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session opts: %w", err)
	}
	if err := ConfigureSessionForGPU(opts, cfg.GPU); err != nil {
		slog.Warn("GPU unavailable, using CPU", "model", cfg.ModelPath, "error", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}
	return opts, nil
}

// InputShape returns the declared NCHW input dimensions. Dynamic axes are
// reported as -1.
func (s *Session) InputShape() []int64 {
	dims := make([]int64, len(s.input.Dimensions))
	copy(dims, s.input.Dimensions)
	return dims
}

// ModelPath returns the model file the session was created from.
func (s *Session) ModelPath() string { return s.path }

// Run executes the model on t. The context is only checked before inference;
// ONNX Runtime itself cannot be interrupted mid-run.
func (s *Session) Run(ctx context.Context, t Tensor) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if err := ValidateNCHW(t.Shape); err != nil {
		return Output{}, fmt.Errorf("input tensor: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Output{}, errors.New("session closed")
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(t.Shape...), t.Data)
	if err != nil {
		return Output{}, fmt.Errorf("input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := s.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return Output{}, fmt.Errorf("inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()

	ot, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return Output{}, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	src := ot.GetData()
	data := make([]float32, len(src))
	copy(data, src)
	shape := ot.GetShape()
	outShape := make([]int64, len(shape))
	copy(outShape, shape)
	return Output{Data: data, Shape: outShape}, nil
}

// Close destroys the native session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
