package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/config"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/testutil"
)

func sampleResult() *pipeline.BatchResult {
	return &pipeline.BatchResult{
		Ingredients: "onion, tomato",
		Names:       []string{"onion", "tomato"},
		Images: []pipeline.ImageResult{
			{
				Index: 0,
				Path:  "a.jpg",
				State: pipeline.StateDone,
				Candidates: []ingredient.Candidate{
					{Name: "onion", Origin: ingredient.OriginText},
				},
			},
		},
		Duration: 2 * time.Second,
	}
}

func TestRenderResult(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderResult(&buf, sampleResult(), formatText))
		assert.Equal(t, "onion, tomato\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderResult(&buf, sampleResult(), formatJSON))
		var got pipeline.BatchResult
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "onion, tomato", got.Ingredients)
		require.Len(t, got.Images, 1)
		assert.Equal(t, pipeline.StateDone, got.Images[0].State)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderResult(&buf, sampleResult(), formatYAML))
		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "onion, tomato", got["ingredients"])
	})
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{formatText, formatJSON, formatYAML} {
		require.NoError(t, validateFormat(f))
	}
	require.Error(t, validateFormat("csv"))
}

func TestExtract_NoImages(t *testing.T) {
	_, _, err := executeCommand(t, "extract", "--format", formatText)
	require.ErrorIs(t, err, pipeline.ErrNoImages)
}

// offlineArgs runs extract with no model-backed engine, so every readable
// image resolves to nothing.
func offlineArgs(t *testing.T, dir string, extra ...string) []string {
	t.Helper()

	dict := filepath.Join(dir, "dict.yaml")
	require.NoError(t, os.WriteFile(dict, []byte("onion: onion\n"), 0o600))
	args := []string{
		"extract",
		"--offline-dictionary", dict,
		"--no-tesseract", "--no-scene", "--no-classifier", "--no-progress",
	}
	return append(args, extra...)
}

func TestExtract_OfflineJSON(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WritePNG(t, dir, "label.png", testutil.TextImage("ONION", 120, 40))
	broken := testutil.WriteCorruptImage(t, dir, "broken.jpg")

	out, _, err := executeCommand(t, offlineArgs(t, dir, "--format", formatJSON, good, broken)...)
	require.NoError(t, err)

	var res pipeline.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.Ingredients)
	require.Len(t, res.Images, 2)
	assert.Equal(t, pipeline.StateDone, res.Images[0].State)
	assert.Equal(t, pipeline.StateSkipped, res.Images[1].State)
}

func TestExtract_OutputFileAndTempCleanup(t *testing.T) {
	dir := t.TempDir()
	temp := testutil.WritePNG(t, dir, "temp_upload.png", testutil.SolidImage(32, 32, testutil.DefaultLabelConfig().Background))
	keep := testutil.WritePNG(t, dir, "keep.png", testutil.SolidImage(32, 32, testutil.DefaultLabelConfig().Background))
	outFile := filepath.Join(dir, "result.txt")

	_, _, err := executeCommand(t, offlineArgs(t, dir, "--format", formatText, "--output", outFile, temp, keep)...)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(data))

	assert.False(t, testutil.FileExists(temp), "temp_ inputs are removed")
	assert.True(t, testutil.FileExists(keep), "other inputs are kept")
}

func TestExtract_BadFormat(t *testing.T) {
	_, _, err := executeCommand(t, "extract", "--format", "csv", "a.png")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported format"))
}

func TestProgressCallback(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	// A buffer is never a terminal.
	cb := progressCallback(&bytes.Buffer{}, logger)
	require.IsType(t, &pipeline.LogProgressCallback{}, cb)

	cb.OnStart(2)
	cb.OnImageDone(1, 2, pipeline.ImageResult{Index: 0, State: pipeline.StateDone})
	cb.OnComplete(sampleResult())
	assert.Contains(t, logs.String(), `"msg":"Batch started"`)
	assert.Contains(t, logs.String(), `"msg":"Image finished"`)
	assert.Contains(t, logs.String(), `"ingredients":"onion, tomato"`)

	// A regular file is not a terminal either.
	f, err := os.CreateTemp(t.TempDir(), "stderr")
	require.NoError(t, err)
	defer f.Close()
	require.IsType(t, &pipeline.LogProgressCallback{}, progressCallback(f, logger))
}

func TestApplyExtractFlags(t *testing.T) {
	cmd := extractCmd
	require.NoError(t, cmd.Flags().Set("workers", "3"))
	require.NoError(t, cmd.Flags().Set("threshold", "0.7"))
	require.NoError(t, cmd.Flags().Set("offline-dictionary", "dict.yaml"))
	t.Cleanup(func() {
		_ = cmd.Flags().Set("workers", "1")
		_ = cmd.Flags().Set("threshold", "0.5")
		for _, name := range []string{"workers", "threshold", "offline-dictionary"} {
			cmd.Flags().Lookup(name).Changed = false
		}
	})

	cfg := config.DefaultConfig()
	applyExtractFlags(cmd, &cfg)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.InDelta(t, 0.7, cfg.Classifier.Threshold, 1e-9)
	assert.Equal(t, config.ProviderStatic, cfg.Resolver.Provider)
	assert.Equal(t, "dict.yaml", cfg.Resolver.DictionaryFile)
}

func TestBuildApp_DegradesWithoutModels(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ModelsDir = dir
	cfg.OCR.Tesseract.Enabled = false
	cfg.Resolver.APIKey = ""
	t.Setenv("OPENAI_API_KEY", "")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := buildApp(context.Background(), &cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	img := testutil.WritePNG(t, dir, "blank.png", testutil.SolidImage(40, 40, testutil.DefaultLabelConfig().Background))
	got, err := a.pipeline.Extract(context.Background(), []string{img})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuildApp_UnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Resolver.Provider = "carrier-pigeon"
	cfg.OCR.Tesseract.Enabled = false
	cfg.OCR.Scene.Enabled = false

	_, err := buildApp(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
