package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/mempool"
)

// ImageProcessingError represents errors that can occur while loading or
// transforming an image.
type ImageProcessingError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image processing error in %s (%s): %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// Normalization describes per-channel mean/std applied after scaling to 0-1.
type Normalization struct {
	Mean [3]float32
	Std  [3]float32
}

// UnitNormalization only scales pixels to 0-1.
func UnitNormalization() Normalization {
	return Normalization{Mean: [3]float32{0, 0, 0}, Std: [3]float32{1, 1, 1}}
}

// ToRGB flattens any image onto an opaque NRGBA buffer. Transparent areas are
// composited over white so labels photographed as PNG cut-outs stay readable.
func ToRGB(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "to_rgb", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, &ImageProcessingError{Operation: "to_rgb", Err: errors.New("invalid image dimensions")}
	}
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0), nil
}

// NormalizeImage converts an image into a planar NCHW float32 buffer
// ([R plane, G plane, B plane]) using the given normalization. The buffer is
// drawn from mempool; callers may return it with mempool.PutFloat32 once no
// tensor references it.
func NormalizeImage(img image.Image, norm Normalization) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}
	for c := range 3 {
		if norm.Std[c] == 0 {
			return nil, 0, 0, &ImageProcessingError{
				Operation: "normalize",
				Err:       fmt.Errorf("std for channel %d is zero", c),
			}
		}
	}

	rgb, err := ToRGB(img)
	if err != nil {
		return nil, 0, 0, err
	}
	width := rgb.Bounds().Dx()
	height := rgb.Bounds().Dy()
	plane := width * height
	tensor := mempool.GetFloat32(3 * plane)

	for y := range height {
		row := rgb.Pix[y*rgb.Stride : y*rgb.Stride+width*4]
		for x := range width {
			idx := y*width + x
			for c := range 3 {
				v := float32(row[x*4+c]) / 255.0
				tensor[c*plane+idx] = (v - norm.Mean[c]) / norm.Std[c]
			}
		}
	}
	return tensor, width, height, nil
}

// ResizeToMultiple scales img so its longer side is at most maxSide and both
// sides are multiples of multiple. It returns the resized image together with
// the x/y factors that map resized coordinates back to the source.
func ResizeToMultiple(img image.Image, maxSide, multiple int) (image.Image, float64, float64, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if maxSide <= 0 || multiple <= 0 {
		return nil, 0, 0, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid resize target: max side %d, multiple %d", maxSide, multiple),
		}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("invalid image dimensions")}
	}

	scale := 1.0
	if longer := max(w, h); longer > maxSide {
		scale = float64(maxSide) / float64(longer)
	}
	nw := roundToMultiple(int(float64(w)*scale), multiple)
	nh := roundToMultiple(int(float64(h)*scale), multiple)

	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	return resized, float64(w) / float64(nw), float64(h) / float64(nh), nil
}

func roundToMultiple(v, m int) int {
	r := ((v + m/2) / m) * m
	if r < m {
		return m
	}
	return r
}

// ClampRect clips r to bounds, returning an empty rectangle if they do not overlap.
func ClampRect(r, bounds image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(bounds)
}
