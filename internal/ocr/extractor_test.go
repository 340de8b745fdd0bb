package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubText struct {
	text  string
	err   error
	panic bool
	calls int
}

func (s *stubText) Name() string { return "stub-text" }

func (s *stubText) ReadText(_ context.Context, _ *image.Gray) (string, error) {
	s.calls++
	if s.panic {
		panic("boom")
	}
	return s.text, s.err
}

type stubRegion struct {
	texts []string
	err   error
}

func (s *stubRegion) Name() string { return "stub-region" }

func (s *stubRegion) ReadRegions(_ context.Context, _ image.Image) ([]Fragment, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Fragment, len(s.texts))
	for i, t := range s.texts {
		out[i] = Fragment{Text: t}
	}
	return out, nil
}

func inputs() (*image.Gray, image.Image) {
	return image.NewGray(image.Rect(0, 0, 8, 8)), image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestExtract_BothEngines(t *testing.T) {
	d := NewDualExtractor(&stubText{text: "Tomato Puree"}, &stubRegion{texts: []string{"Basil", "Oregano"}})
	bin, color := inputs()

	out := d.Extract(context.Background(), bin, color)
	assert.Equal(t, "Tomato Puree", out.Text)
	require.Len(t, out.Regions, 2)
	assert.Equal(t, SourceScene, out.Regions[0].Source)
	assert.Equal(t, []string{"Tomato Puree", "Basil", "Oregano"}, out.Texts())
	assert.Equal(t, SourceBinarized, out.Fragments()[0].Source)
	assert.False(t, out.Empty())
}

func TestExtract_EngineFailureDegrades(t *testing.T) {
	bin, color := inputs()

	d := NewDualExtractor(&stubText{err: errors.New("tesseract missing")}, &stubRegion{texts: []string{"Milk"}})
	out := d.Extract(context.Background(), bin, color)
	assert.Empty(t, out.Text)
	assert.Equal(t, []string{"Milk"}, out.Texts())

	d = NewDualExtractor(&stubText{text: "Flour"}, &stubRegion{err: errors.New("no model")})
	out = d.Extract(context.Background(), bin, color)
	assert.Equal(t, []string{"Flour"}, out.Texts())
	assert.Empty(t, out.Regions)
}

func TestExtract_PanicIsContained(t *testing.T) {
	bin, color := inputs()
	d := NewDualExtractor(&stubText{panic: true}, &stubRegion{texts: []string{"Rice"}})

	out := d.Extract(context.Background(), bin, color)
	assert.Empty(t, out.Text)
	assert.Equal(t, []string{"Rice"}, out.Texts())
}

func TestExtract_NilEngines(t *testing.T) {
	bin, color := inputs()
	d := NewDualExtractor(nil, nil)
	out := d.Extract(context.Background(), bin, color)
	assert.True(t, out.Empty())
	assert.Empty(t, out.Fragments())
	assert.Empty(t, d.Engines())
}

func TestOutput_BlankTextSkipped(t *testing.T) {
	out := Output{Text: "  \n", Regions: []Fragment{{Text: "Egg"}}}
	assert.Equal(t, []string{"Egg"}, out.Texts())
}
