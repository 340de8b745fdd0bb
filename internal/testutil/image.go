package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{160, 60}
	MediumSize = ImageSize{320, 120}
	LargeSize  = ImageSize{640, 480}
)

// LabelConfig describes a synthetic packaging label.
type LabelConfig struct {
	Text       string // lines separated by "\n"
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
	Rotation   float64 // degrees
}

// DefaultLabelConfig returns dark text on a cream label.
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{
		Text:       "ONION",
		Size:       MediumSize,
		Background: color.RGBA{R: 235, G: 228, B: 205, A: 255},
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// LabelImage renders cfg.Text centred on a plain background.
func LabelImage(cfg LabelConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	face := cfg.FontFace
	if face == nil {
		face = basicfont.Face7x13
	}
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{cfg.Foreground},
		Face: face,
	}

	lines := strings.Split(cfg.Text, "\n")
	lineHeight := face.Metrics().Height.Ceil()
	startY := (cfg.Size.Height - len(lines)*lineHeight) / 2
	for i, line := range lines {
		w := font.MeasureString(face, line).Ceil()
		drawer.Dot = fixed.P((cfg.Size.Width-w)/2, startY+(i+1)*lineHeight)
		drawer.DrawString(line)
	}

	if cfg.Rotation != 0 {
		rotated := imaging.Rotate(img, cfg.Rotation, cfg.Background)
		rgba := image.NewRGBA(rotated.Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		return rgba
	}
	return img
}

// TextImage renders text on a label of the given size.
func TextImage(text string, width, height int) *image.RGBA {
	cfg := DefaultLabelConfig()
	cfg.Text = text
	cfg.Size = ImageSize{Width: width, Height: height}
	return LabelImage(cfg)
}

// SolidImage returns a uniformly coloured image, the "no text" case.
func SolidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// GradientImage returns a left-to-right brightness ramp, roughly the uneven
// lighting of a phone photo.
func GradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := uint8(60 + (x*180)/max(width, 1))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// WritePNG encodes img to dir/name and returns the path.
func WritePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)
	path := filepath.Join(dir, name)
	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
	return path
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WriteCorruptImage writes bytes that carry an image extension but do not
// decode.
func WriteCorruptImage(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("definitely not an image"), 0o600))
	return path
}
