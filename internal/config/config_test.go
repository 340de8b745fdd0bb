package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "models", cfg.ModelsDir)
	assert.Equal(t, ProviderOpenAI, cfg.Resolver.Provider)
	assert.Equal(t, 1, cfg.Resolver.Concurrency)
	assert.Equal(t, []string{"diced", "sliced", "fresh"}, cfg.Resolver.Modifiers)
	assert.InDelta(t, 0.5, cfg.Classifier.Threshold, 1e-9)
	assert.Equal(t, "temp_", cfg.Pipeline.TempPrefix)
	assert.True(t, cfg.Pipeline.RemoveTempFiles)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"preprocess kernel", func(c *Config) { c.Preprocess.BlurKernel = 4 }, "preprocess"},
		{"scene threshold", func(c *Config) { c.OCR.Scene.DetThresh = 2 }, "ocr.scene"},
		{"provider", func(c *Config) { c.Resolver.Provider = "bard" }, "invalid resolver provider"},
		{"static needs dictionary", func(c *Config) { c.Resolver.Provider = ProviderStatic }, "dictionary_file"},
		{"concurrency", func(c *Config) { c.Resolver.Concurrency = 0 }, "concurrency"},
		{"temperature", func(c *Config) { c.Resolver.Temperature = 3 }, "temperature"},
		{"threshold", func(c *Config) { c.Classifier.Threshold = 1.2 }, "classifier.threshold"},
		{"std", func(c *Config) { c.Classifier.Std[1] = 0 }, "classifier.std[1]"},
		{"workers", func(c *Config) { c.Pipeline.Workers = 0 }, "pipeline workers"},
		{"image timeout", func(c *Config) { c.Pipeline.ImageTimeout = -time.Second }, "image timeout"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"files", func(c *Config) { c.Server.MaxFiles = 0 }, "max files"},
		{"rate limit", func(c *Config) {
			c.Server.RateLimit.Enabled = true
			c.Server.RateLimit.RequestsPerMinute = 0
		}, "rate limit"},
		{"gpu device", func(c *Config) {
			c.GPU.UseGPU = true
			c.GPU.DeviceID = -1
		}, "gpu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DisabledSceneSkipsItsChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OCR.Scene.Enabled = false
	cfg.OCR.Scene.DetThresh = 5
	assert.NoError(t, cfg.Validate())
}

func TestModelPathResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/opt/models"
	cfg.OnnxLibrary = "/usr/lib/libonnxruntime.so"

	assert.Equal(t, "/opt/models/a.onnx", cfg.ModelPath("a.onnx"))
	assert.Equal(t, "/abs/b.onnx", cfg.ModelPath("/abs/b.onnx"))
	assert.Equal(t, "", cfg.ModelPath(""))

	sc := cfg.SceneConfig()
	assert.Equal(t, filepath.Join("/opt/models", "detection/text_det.onnx"), sc.DetectionModel)
	assert.Equal(t, filepath.Join("/opt/models", "recognition/dict.txt"), sc.Dictionary)
	assert.Equal(t, cfg.OnnxLibrary, sc.LibraryPath)

	cc := cfg.ClassifierConfig()
	assert.Equal(t, filepath.Join("/opt/models", "classifier/model.onnx"), cc.ModelPath)
	assert.Equal(t, filepath.Join("/opt/models", "classifier/config.json"), cc.LabelsPath)
	// The stored config is not modified.
	assert.Equal(t, "classifier/model.onnx", cfg.Classifier.ModelPath)
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Workers = 4
	cfg.Pipeline.ImageTimeout = 5 * time.Second
	cfg.Classifier.Threshold = 0.7
	cfg.Resolver.APIKey = "sk-test"
	cfg.Resolver.CacheTTL = time.Minute

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, 4, pc.Workers)
	assert.Equal(t, 5*time.Second, pc.ImageTimeout)
	assert.InDelta(t, 0.7, pc.ClassifierThreshold, 1e-9)
	assert.Equal(t, "temp_", pc.TempPolicy.Prefix)
	assert.True(t, pc.TempPolicy.Remove)

	oc := cfg.OpenAIConfig()
	assert.Equal(t, "sk-test", oc.APIKey)
	assert.Equal(t, "gpt-3.5-turbo", oc.Model)
	assert.Equal(t, 16, oc.MaxTokens)

	assert.Equal(t, time.Minute, cfg.CacheConfig().TTL)
	assert.Equal(t, cfg.Resolver.Timeout, cfg.CacheConfig().CallTimeout)
	assert.Len(t, cfg.ResolverOptions(), 3)
}
