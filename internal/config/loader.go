package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "pantry"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PANTRY"

	// APIKeyEnvVar is consulted when resolver.api_key is not configured.
	APIKeyEnvVar = "OPENAI_API_KEY"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags bound
// by the CLI are seen.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load searches the standard locations for a config file, applies
// environment overrides and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// behaves like Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithoutValidation is Load without the final validation step.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if config.Resolver.APIKey == "" {
		config.Resolver.APIKey = os.Getenv(APIKeyEnvVar)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// GetResolvedConfig returns the current resolved settings for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that AutomaticEnv and Unmarshal see
// the full tree even without a config file.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("onnx_library", d.OnnxLibrary)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("preprocess.target_size", d.Preprocess.TargetSize)
	l.v.SetDefault("preprocess.blur_kernel", d.Preprocess.BlurKernel)
	l.v.SetDefault("preprocess.threshold_block_size", d.Preprocess.ThresholdBlockSize)
	l.v.SetDefault("preprocess.threshold_c", d.Preprocess.ThresholdC)
	l.v.SetDefault("preprocess.close_kernel", d.Preprocess.CloseKernel)
	l.v.SetDefault("preprocess.close_iterations", d.Preprocess.CloseIterations)

	l.v.SetDefault("ocr.tesseract.enabled", d.OCR.Tesseract.Enabled)
	l.v.SetDefault("ocr.tesseract.language", d.OCR.Tesseract.Language)
	l.v.SetDefault("ocr.tesseract.psm", d.OCR.Tesseract.PSM)
	l.v.SetDefault("ocr.tesseract.whitelist", d.OCR.Tesseract.Whitelist)

	l.v.SetDefault("ocr.scene.enabled", d.OCR.Scene.Enabled)
	l.v.SetDefault("ocr.scene.detection_model", d.OCR.Scene.DetectionModel)
	l.v.SetDefault("ocr.scene.recognition_model", d.OCR.Scene.RecognitionModel)
	l.v.SetDefault("ocr.scene.dictionary", d.OCR.Scene.Dictionary)
	l.v.SetDefault("ocr.scene.det_thresh", d.OCR.Scene.DetThresh)
	l.v.SetDefault("ocr.scene.box_thresh", d.OCR.Scene.BoxThresh)
	l.v.SetDefault("ocr.scene.max_side", d.OCR.Scene.MaxSide)
	l.v.SetDefault("ocr.scene.rec_height", d.OCR.Scene.RecHeight)
	l.v.SetDefault("ocr.scene.rec_max_width", d.OCR.Scene.RecMaxWidth)
	l.v.SetDefault("ocr.scene.min_region_area", d.OCR.Scene.MinRegionArea)
	l.v.SetDefault("ocr.scene.min_text_conf", d.OCR.Scene.MinTextConf)
	l.v.SetDefault("ocr.scene.num_threads", d.OCR.Scene.NumThreads)

	l.v.SetDefault("resolver.provider", d.Resolver.Provider)
	l.v.SetDefault("resolver.base_url", d.Resolver.BaseURL)
	l.v.SetDefault("resolver.api_key", d.Resolver.APIKey)
	l.v.SetDefault("resolver.model", d.Resolver.Model)
	l.v.SetDefault("resolver.temperature", d.Resolver.Temperature)
	l.v.SetDefault("resolver.max_tokens", d.Resolver.MaxTokens)
	l.v.SetDefault("resolver.timeout", d.Resolver.Timeout)
	l.v.SetDefault("resolver.concurrency", d.Resolver.Concurrency)
	l.v.SetDefault("resolver.cache_ttl", d.Resolver.CacheTTL)
	l.v.SetDefault("resolver.cache_capacity", d.Resolver.CacheCapacity)
	l.v.SetDefault("resolver.dictionary_file", d.Resolver.DictionaryFile)
	l.v.SetDefault("resolver.modifiers", d.Resolver.Modifiers)

	l.v.SetDefault("classifier.enabled", d.Classifier.Enabled)
	l.v.SetDefault("classifier.model_path", d.Classifier.ModelPath)
	l.v.SetDefault("classifier.labels_path", d.Classifier.LabelsPath)
	l.v.SetDefault("classifier.threshold", d.Classifier.Threshold)
	l.v.SetDefault("classifier.num_threads", d.Classifier.NumThreads)
	l.v.SetDefault("classifier.mean", d.Classifier.Mean[:])
	l.v.SetDefault("classifier.std", d.Classifier.Std[:])

	l.v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	l.v.SetDefault("pipeline.image_timeout", d.Pipeline.ImageTimeout)
	l.v.SetDefault("pipeline.temp_prefix", d.Pipeline.TempPrefix)
	l.v.SetDefault("pipeline.remove_temp_files", d.Pipeline.RemoveTempFiles)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.max_files", d.Server.MaxFiles)
	l.v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)

	l.v.SetDefault("gpu.enabled", d.GPU.UseGPU)
	l.v.SetDefault("gpu.device", d.GPU.DeviceID)
	l.v.SetDefault("gpu.mem_limit", d.GPU.GPUMemLimit)
}

// GenerateDefaultConfigFile writes the default configuration as YAML.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("config file already exists: %s", filename)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	header := "# pantry configuration\n" +
		"# Every key can be overridden with an environment variable, e.g.\n" +
		"# PANTRY_RESOLVER_MODEL or PANTRY_PIPELINE_WORKERS.\n"

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(filename, append([]byte(header), data...), 0o600)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists && configDir != "" {
		paths = append(paths, filepath.Join(configDir, "pantry"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pantry"))
	}

	return append(paths, "/etc/pantry")
}
