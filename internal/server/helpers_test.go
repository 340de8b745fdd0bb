package server

import (
	"bytes"
	"context"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/preprocess"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/testutil"
)

// widthOCR reads a fixed label per image width.
type widthOCR map[int]string

func (w widthOCR) Extract(_ context.Context, _ *image.Gray, orig image.Image) ocr.Output {
	return ocr.Output{Text: w[orig.Bounds().Dx()]}
}

// Widths the stub engine recognizes.
const (
	onionWidth  = 40
	tomatoWidth = 50
	blankWidth  = 60
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	ext := widthOCR{onionWidth: "ONION", tomatoWidth: "Tomatoes 400g"}
	cat := ingredient.CategorizerFunc(func(_ context.Context, text string) (string, error) {
		switch text {
		case "ONION":
			return "onion", nil
		case "Tomatoes 400g":
			return "tomato", nil
		}
		return "none", nil
	})

	p, err := pipeline.New(pipeline.DefaultConfig(), pipeline.Capabilities{
		Preprocessor: preprocess.New(preprocess.DefaultConfig()),
		OCR:          ext,
		Resolver:     ingredient.NewResolver(cat, ingredient.WithLogger(quietLogger())),
	})
	require.NoError(t, err)
	return p
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg, newTestPipeline(t), quietLogger())
	require.NoError(t, err)
	return s
}

func pngOfWidth(t *testing.T, w int) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.GradientImage(w, 24))
}

type formFile struct {
	name string
	data []byte
}

// multipartRequest builds a POST with every file under the given field.
func multipartRequest(t *testing.T, field string, files ...formFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/ingredients", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
