//nolint:lll
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/classifier"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr/scene"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr/tesseract"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/onnx"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/preprocess"
)

// Resolver providers.
const (
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Config represents the complete configuration for the pantry application.
// It is loaded from configuration files, environment variables and
// command-line flags.
type Config struct {
	// Global settings
	ModelsDir   string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	OnnxLibrary string `mapstructure:"onnx_library" yaml:"onnx_library" json:"onnx_library"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Preprocess preprocess.Config `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	OCR        OCRConfig         `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Resolver   ResolverConfig    `mapstructure:"resolver" yaml:"resolver" json:"resolver"`
	Classifier classifier.Config `mapstructure:"classifier" yaml:"classifier" json:"classifier"`
	Pipeline   PipelineConfig    `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Server     ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	GPU        onnx.GPUConfig    `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// OCRConfig holds both OCR engines.
type OCRConfig struct {
	Tesseract tesseract.Config `mapstructure:"tesseract" yaml:"tesseract" json:"tesseract"`
	Scene     scene.Config     `mapstructure:"scene" yaml:"scene" json:"scene"`
}

// ResolverConfig configures ingredient categorization.
type ResolverConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider" json:"provider"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key,omitempty" json:"-"`
	Model          string        `mapstructure:"model" yaml:"model" json:"model"`
	Temperature    float32       `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl"`
	CacheCapacity  uint64        `mapstructure:"cache_capacity" yaml:"cache_capacity" json:"cache_capacity"`
	DictionaryFile string        `mapstructure:"dictionary_file" yaml:"dictionary_file" json:"dictionary_file"`
	Modifiers      []string      `mapstructure:"modifiers" yaml:"modifiers" json:"modifiers"`
}

// PipelineConfig controls batch execution.
type PipelineConfig struct {
	Workers         int           `mapstructure:"workers" yaml:"workers" json:"workers"`
	ImageTimeout    time.Duration `mapstructure:"image_timeout" yaml:"image_timeout" json:"image_timeout"`
	TempPrefix      string        `mapstructure:"temp_prefix" yaml:"temp_prefix" json:"temp_prefix"`
	RemoveTempFiles bool          `mapstructure:"remove_temp_files" yaml:"remove_temp_files" json:"remove_temp_files"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	MaxFiles        int             `mapstructure:"max_files" yaml:"max_files" json:"max_files"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig limits requests per client IP.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		ModelsDir:  "models",
		LogLevel:   "info",
		Preprocess: preprocess.DefaultConfig(),
		OCR: OCRConfig{
			Tesseract: tesseract.DefaultConfig(),
			Scene:     scene.DefaultConfig(),
		},
		Resolver: ResolverConfig{
			Provider:      ProviderOpenAI,
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-3.5-turbo",
			Temperature:   0,
			MaxTokens:     16,
			Timeout:       30 * time.Second,
			Concurrency:   1,
			CacheTTL:      ingredient.DefaultCacheTTL,
			CacheCapacity: 10000,
			Modifiers:     slices.Clone(ingredient.DefaultModifiers),
		},
		Classifier: classifier.DefaultConfig(),
		Pipeline: PipelineConfig{
			Workers:         1,
			TempPrefix:      "temp_",
			RemoveTempFiles: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			MaxFiles:        20,
			RequestTimeout:  2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
			},
		},
		GPU: onnx.DefaultGPUConfig(),
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := c.Preprocess.Validate(); err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	if c.OCR.Scene.Enabled {
		if err := c.OCR.Scene.Validate(); err != nil {
			return fmt.Errorf("ocr.scene: %w", err)
		}
	}

	switch c.Resolver.Provider {
	case ProviderOpenAI:
		if c.Resolver.BaseURL == "" {
			return fmt.Errorf("resolver.base_url is required for provider %q", ProviderOpenAI)
		}
	case ProviderStatic:
		if c.Resolver.DictionaryFile == "" {
			return fmt.Errorf("resolver.dictionary_file is required for provider %q", ProviderStatic)
		}
	default:
		return fmt.Errorf("invalid resolver provider: %q (must be one of: %s, %s)", c.Resolver.Provider, ProviderOpenAI, ProviderStatic)
	}
	if c.Resolver.Concurrency < 1 {
		return fmt.Errorf("invalid resolver concurrency: %d (must be positive)", c.Resolver.Concurrency)
	}
	if c.Resolver.Timeout < 0 {
		return fmt.Errorf("invalid resolver timeout: %v", c.Resolver.Timeout)
	}
	if c.Resolver.Temperature < 0 || c.Resolver.Temperature > 2 {
		return fmt.Errorf("invalid resolver temperature: %v (must be between 0 and 2)", c.Resolver.Temperature)
	}

	if err := validateThreshold(c.Classifier.Threshold, "classifier.threshold"); err != nil {
		return err
	}
	for i, s := range c.Classifier.Std {
		if s == 0 {
			return fmt.Errorf("classifier.std[%d] must not be zero", i)
		}
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("invalid pipeline workers: %d (must be positive)", c.Pipeline.Workers)
	}
	if c.Pipeline.ImageTimeout < 0 {
		return fmt.Errorf("invalid pipeline image timeout: %v", c.Pipeline.ImageTimeout)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.MaxFiles <= 0 {
		return fmt.Errorf("invalid max files: %d (must be positive)", c.Server.MaxFiles)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute (must be positive)", c.Server.RateLimit.RequestsPerMinute)
	}

	if err := onnx.ValidateGPUConfig(c.GPU); err != nil {
		return fmt.Errorf("gpu: %w", err)
	}
	return nil
}

// ModelPath resolves p against ModelsDir unless it is absolute.
func (c *Config) ModelPath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.ModelsDir == "" {
		return p
	}
	return filepath.Join(c.ModelsDir, p)
}

// SceneConfig returns the scene engine settings with resolved paths.
func (c *Config) SceneConfig() scene.Config {
	sc := c.OCR.Scene
	sc.DetectionModel = c.ModelPath(sc.DetectionModel)
	sc.RecognitionModel = c.ModelPath(sc.RecognitionModel)
	sc.Dictionary = c.ModelPath(sc.Dictionary)
	sc.LibraryPath = c.OnnxLibrary
	sc.GPU = c.GPU
	return sc
}

// ClassifierConfig returns the classifier settings with resolved paths.
func (c *Config) ClassifierConfig() classifier.Config {
	cc := c.Classifier
	cc.ModelPath = c.ModelPath(cc.ModelPath)
	cc.LabelsPath = c.ModelPath(cc.LabelsPath)
	cc.LibraryPath = c.OnnxLibrary
	cc.GPU = c.GPU
	return cc
}

// OpenAIConfig returns the categorization client settings.
func (c *Config) OpenAIConfig() ingredient.OpenAIConfig {
	return ingredient.OpenAIConfig{
		APIKey:      c.Resolver.APIKey,
		BaseURL:     c.Resolver.BaseURL,
		Model:       c.Resolver.Model,
		Temperature: c.Resolver.Temperature,
		MaxTokens:   c.Resolver.MaxTokens,
		Timeout:     c.Resolver.Timeout,
	}
}

// CacheConfig returns the categorization cache settings.
func (c *Config) CacheConfig() ingredient.CacheConfig {
	return ingredient.CacheConfig{
		TTL:         c.Resolver.CacheTTL,
		Capacity:    c.Resolver.CacheCapacity,
		CallTimeout: c.Resolver.Timeout,
	}
}

// ResolverOptions returns the resolver options derived from the config.
func (c *Config) ResolverOptions() []ingredient.Option {
	return []ingredient.Option{
		ingredient.WithConcurrency(c.Resolver.Concurrency),
		ingredient.WithModifiers(c.Resolver.Modifiers),
		ingredient.WithRequestTimeout(c.Resolver.Timeout),
	}
}

// ToPipelineConfig converts the config to the pipeline's batch settings.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Workers:             c.Pipeline.Workers,
		ClassifierThreshold: c.Classifier.Threshold,
		ImageTimeout:        c.Pipeline.ImageTimeout,
		TempPolicy: pipeline.TempPolicy{
			Prefix: c.Pipeline.TempPrefix,
			Remove: c.Pipeline.RemoveTempFiles,
		},
	}
}

func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
