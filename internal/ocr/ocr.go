// Package ocr runs two complementary text engines over one photo: a
// printed-text engine on the binarized image and a scene-text engine on the
// original color image.
package ocr

import (
	"context"
	"image"
	"strings"
)

// Source identifies which engine produced a fragment.
type Source string

const (
	SourceBinarized Source = "binarized"
	SourceScene     Source = "scene"
)

// Fragment is one piece of recognized text.
type Fragment struct {
	Text       string          `json:"text"`
	Source     Source          `json:"source"`
	Confidence float64         `json:"confidence,omitempty"`
	Box        image.Rectangle `json:"box"`
}

// TextEngine reads a binarized page and returns its full text.
type TextEngine interface {
	Name() string
	ReadText(ctx context.Context, img *image.Gray) (string, error)
}

// RegionEngine detects text regions in a color photo and returns one fragment
// per region.
type RegionEngine interface {
	Name() string
	ReadRegions(ctx context.Context, img image.Image) ([]Fragment, error)
}

// Output is the combined result of both engines for one image.
type Output struct {
	Text    string     `json:"text"`
	Regions []Fragment `json:"regions"`
}

// Fragments returns the binarized-engine text first, if any, followed by the
// scene regions in engine order.
func (o Output) Fragments() []Fragment {
	out := make([]Fragment, 0, len(o.Regions)+1)
	if strings.TrimSpace(o.Text) != "" {
		out = append(out, Fragment{Text: o.Text, Source: SourceBinarized})
	}
	return append(out, o.Regions...)
}

// Texts returns the raw text of every fragment, in Fragments order.
func (o Output) Texts() []string {
	frags := o.Fragments()
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = f.Text
	}
	return out
}

// Empty reports whether neither engine produced anything.
func (o Output) Empty() bool {
	return strings.TrimSpace(o.Text) == "" && len(o.Regions) == 0
}
