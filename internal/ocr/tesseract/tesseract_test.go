package tesseract

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	text      string
	textErr   error
	delay     time.Duration
	langs     []string
	psm       gosseract.PageSegMode
	whitelist string
	image     []byte
	closed    bool
}

func (f *fakeClient) SetImageFromBytes(data []byte) error { f.image = data; return nil }
func (f *fakeClient) SetLanguage(langs ...string) error   { f.langs = langs; return nil }
func (f *fakeClient) SetPageSegMode(mode gosseract.PageSegMode) error {
	f.psm = mode
	return nil
}
func (f *fakeClient) SetWhitelist(w string) error { f.whitelist = w; return nil }
func (f *fakeClient) Close() error                { f.closed = true; return nil }

func (f *fakeClient) Text() (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.text, f.textErr
}

func newTestEngine(cfg Config, fc *fakeClient) *Engine {
	e := New(cfg)
	e.clientFactory = func() client { return fc }
	return e
}

func grayImage() *image.Gray {
	return image.NewGray(image.Rect(0, 0, 16, 16))
}

func TestReadText(t *testing.T) {
	fc := &fakeClient{text: "  Chopped Tomatoes\n"}
	cfg := DefaultConfig()
	cfg.Whitelist = "abc"
	e := newTestEngine(cfg, fc)

	text, err := e.ReadText(context.Background(), grayImage())
	require.NoError(t, err)
	assert.Equal(t, "Chopped Tomatoes", text)
	assert.Equal(t, []string{"eng"}, fc.langs)
	assert.Equal(t, gosseract.PSM_AUTO, fc.psm)
	assert.Equal(t, "abc", fc.whitelist)
	assert.NotEmpty(t, fc.image)
	assert.True(t, fc.closed)
	assert.Equal(t, "tesseract", e.Name())
}

func TestReadText_Errors(t *testing.T) {
	e := newTestEngine(DefaultConfig(), &fakeClient{textErr: errors.New("no data")})
	_, err := e.ReadText(context.Background(), grayImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recognize text")

	_, err = e.ReadText(context.Background(), nil)
	require.Error(t, err)
}

func TestReadText_Timeout(t *testing.T) {
	e := newTestEngine(DefaultConfig(), &fakeClient{text: "late", delay: 200 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.ReadText(ctx, grayImage())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
