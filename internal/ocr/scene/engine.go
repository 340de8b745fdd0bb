// Package scene implements the natural-scene OCR engine: a DB-style text
// detector followed by a CTC line recognizer, both run through ONNX Runtime.
package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/mempool"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/onnx"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/utils"
)

var (
	detNorm = utils.Normalization{
		Mean: [3]float32{0.485, 0.456, 0.406},
		Std:  [3]float32{0.229, 0.224, 0.225},
	}
	recNorm = utils.Normalization{
		Mean: [3]float32{0.5, 0.5, 0.5},
		Std:  [3]float32{0.5, 0.5, 0.5},
	}
)

// model is the part of *onnx.Session the engine needs.
type model interface {
	Run(ctx context.Context, t onnx.Tensor) (onnx.Output, error)
	Close() error
}

// Engine detects and reads text regions in color photos. Sessions are loaded
// once and shared; the engine is safe for concurrent use.
type Engine struct {
	cfg     Config
	det     model
	rec     model
	charset *Charset
}

// New loads the dictionary and both models.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	charset, err := LoadCharset(cfg.Dictionary)
	if err != nil {
		return nil, err
	}

	det, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.DetectionModel,
		LibraryPath: cfg.LibraryPath,
		NumThreads:  cfg.NumThreads,
		GPU:         cfg.GPU,
	})
	if err != nil {
		return nil, fmt.Errorf("detection model: %w", err)
	}
	rec, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.RecognitionModel,
		LibraryPath: cfg.LibraryPath,
		NumThreads:  cfg.NumThreads,
		GPU:         cfg.GPU,
	})
	if err != nil {
		_ = det.Close()
		return nil, fmt.Errorf("recognition model: %w", err)
	}

	slog.Info("Scene text engine ready",
		"detection_model", cfg.DetectionModel,
		"recognition_model", cfg.RecognitionModel,
		"charset_size", len(charset.Tokens))
	return &Engine{cfg: cfg, det: det, rec: rec, charset: charset}, nil
}

func (e *Engine) Name() string { return "scene" }

// ReadRegions returns one fragment per detected text region in reading order.
// A region that fails recognition is dropped; cancellation aborts the call.
func (e *Engine) ReadRegions(ctx context.Context, img image.Image) ([]ocr.Fragment, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}

	regions, err := e.detect(ctx, img)
	if err != nil {
		return nil, err
	}

	fragments := make([]ocr.Fragment, 0, len(regions))
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, conf, err := e.recognize(ctx, img, r.Box)
		if err != nil {
			slog.Debug("Region recognition failed", "box", r.Box.String(), "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || conf < e.cfg.MinTextConf {
			continue
		}
		fragments = append(fragments, ocr.Fragment{
			Text:       text,
			Source:     ocr.SourceScene,
			Confidence: conf,
			Box:        r.Box,
		})
	}
	return fragments, nil
}

func (e *Engine) detect(ctx context.Context, img image.Image) ([]Region, error) {
	resized, sx, sy, err := utils.ResizeToMultiple(img, e.cfg.MaxSide, 32)
	if err != nil {
		return nil, err
	}
	data, w, h, err := utils.NormalizeImage(resized, detNorm)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(data)
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}

	out, err := e.det.Run(ctx, tensor)
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	if len(out.Shape) < 2 {
		return nil, fmt.Errorf("unexpected detection output shape %v", out.Shape)
	}
	mapH := int(out.Shape[len(out.Shape)-2])
	mapW := int(out.Shape[len(out.Shape)-1])
	if mapW*mapH == 0 || len(out.Data) < mapW*mapH {
		return nil, fmt.Errorf("unexpected detection output shape %v", out.Shape)
	}

	regions := DetectRegions(out.Data[:mapW*mapH], mapW, mapH, e.cfg.DetThresh, e.cfg.BoxThresh, e.cfg.MinRegionArea)
	// The map may be smaller than the input (strided heads).
	sx *= float64(w) / float64(mapW)
	sy *= float64(h) / float64(mapH)
	return OrderRegions(ScaleRegions(regions, sx, sy, img.Bounds())), nil
}

func (e *Engine) recognize(ctx context.Context, img image.Image, box image.Rectangle) (string, float64, error) {
	crop := imaging.Crop(img, box)
	line, err := resizeLine(crop, e.cfg.RecHeight, e.cfg.RecMaxWidth, 8)
	if err != nil {
		return "", 0, err
	}
	data, w, h, err := utils.NormalizeImage(line, recNorm)
	if err != nil {
		return "", 0, err
	}
	defer mempool.PutFloat32(data)
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return "", 0, err
	}

	out, err := e.rec.Run(ctx, tensor)
	if err != nil {
		return "", 0, fmt.Errorf("recognition: %w", err)
	}
	seqs := DecodeGreedy(out.Data, out.Shape, 0, classesFirst(out.Shape, e.charset.Classes()))
	if len(seqs) == 0 {
		return "", 0, fmt.Errorf("undecodable recognition output shape %v", out.Shape)
	}
	return e.charset.Decode(seqs[0].Indices), seqs[0].Confidence(), nil
}

// resizeLine scales a text line to a fixed height, clamps its width and pads
// the right side with black up to a multiple of padTo.
func resizeLine(img image.Image, height, maxWidth, padTo int) (image.Image, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("empty crop")
	}
	w := max(1, int(float64(b.Dx())*float64(height)/float64(b.Dy())))
	w = min(w, maxWidth)
	resized := imaging.Resize(img, w, height, imaging.Lanczos)

	outW := w
	if rem := w % padTo; rem != 0 {
		outW += padTo - rem
	}
	if outW == w {
		return resized, nil
	}
	canvas := imaging.New(outW, height, color.Black)
	return imaging.Paste(canvas, resized, image.Pt(0, 0)), nil
}

// Close releases both sessions.
func (e *Engine) Close() error {
	return errors.Join(e.det.Close(), e.rec.Close())
}
