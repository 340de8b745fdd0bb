// Package tesseract implements the printed-text OCR engine on top of the
// Tesseract library.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Config controls the Tesseract client.
type Config struct {
	Enabled   bool   `mapstructure:"enabled"   yaml:"enabled"   json:"enabled"`
	Language  string `mapstructure:"language"  yaml:"language"  json:"language"`
	PSM       int    `mapstructure:"psm"       yaml:"psm"       json:"psm"`
	Whitelist string `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist"`
}

// DefaultConfig reads English text with automatic page segmentation.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Language: "eng",
		PSM:      int(gosseract.PSM_AUTO),
	}
}

// client is the subset of *gosseract.Client the engine uses.
type client interface {
	SetImageFromBytes(data []byte) error
	SetLanguage(langs ...string) error
	SetPageSegMode(mode gosseract.PageSegMode) error
	SetWhitelist(whitelist string) error
	Text() (string, error)
	Close() error
}

// Engine runs Tesseract on binarized images. A fresh client is created per
// call because gosseract clients are not safe for concurrent use.
type Engine struct {
	cfg           Config
	clientFactory func() client
}

// New constructs a Tesseract-backed engine.
func New(cfg Config) *Engine {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Engine{
		cfg:           cfg,
		clientFactory: func() client { return gosseract.NewClient() },
	}
}

func (e *Engine) Name() string { return "tesseract" }

// ReadText returns the trimmed page text of img. The Tesseract call cannot be
// interrupted, so on cancellation the call is abandoned and finishes in the
// background.
func (e *Engine) ReadText(ctx context.Context, img *image.Gray) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", errors.New("empty image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := e.recognize(buf.Bytes())
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.text, r.err
	}
}

func (e *Engine) recognize(data []byte) (text string, err error) {
	c := e.clientFactory()
	defer func() {
		if cerr := c.Close(); cerr != nil {
			slog.Debug("Failed to close tesseract client", "error", cerr)
		}
	}()

	if err := c.SetLanguage(e.cfg.Language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if e.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return "", fmt.Errorf("set page segmentation: %w", err)
		}
	}
	if e.cfg.Whitelist != "" {
		if err := c.SetWhitelist(e.cfg.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err = c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
