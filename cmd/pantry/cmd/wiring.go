package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/classifier"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/config"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ingredient"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr/scene"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/ocr/tesseract"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/preprocess"
)

// app is a constructed pipeline plus the resources it owns.
type app struct {
	pipeline *pipeline.Pipeline
	closers  []func()
}

// Close releases model sessions and background goroutines.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// buildApp constructs every capability from cfg. Optional engines that fail
// to load are logged and left out; only a broken categorizer or invalid
// pipeline settings are fatal.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	extractor, err := a.buildExtractor(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	cat, err := a.buildCategorizer(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := append(cfg.ResolverOptions(), ingredient.WithLogger(logger))

	caps := pipeline.Capabilities{
		Preprocessor: preprocess.New(cfg.Preprocess),
		OCR:          extractor,
		Resolver:     ingredient.NewResolver(cat, opts...),
	}

	if cfg.Classifier.Enabled {
		cls := classifier.New(cfg.ClassifierConfig())
		if err := cls.Init(ctx); err != nil {
			logger.Warn("Classifier unavailable, fallback returns no label", "error", err)
		}
		a.closers = append(a.closers, func() { _ = cls.Close() })
		caps.Classifier = cls
	}

	p, err := pipeline.New(cfg.ToPipelineConfig(), caps)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

func (a *app) buildExtractor(cfg *config.Config, logger *slog.Logger) (*ocr.DualExtractor, error) {
	var text ocr.TextEngine
	if cfg.OCR.Tesseract.Enabled {
		text = tesseract.New(cfg.OCR.Tesseract)
	}

	var region ocr.RegionEngine
	if cfg.OCR.Scene.Enabled {
		eng, err := scene.New(cfg.SceneConfig())
		if err != nil {
			logger.Warn("Scene text engine unavailable", "error", err)
		} else {
			a.closers = append(a.closers, func() { _ = eng.Close() })
			region = eng
		}
	}

	ext := ocr.NewDualExtractor(text, region)
	if len(ext.Engines()) == 0 {
		logger.Warn("No OCR engine enabled, only the classifier fallback will produce ingredients")
	}
	return ext, nil
}

func (a *app) buildCategorizer(cfg *config.Config, logger *slog.Logger) (ingredient.Categorizer, error) {
	switch cfg.Resolver.Provider {
	case config.ProviderStatic:
		dict, err := ingredient.LoadStaticDictionary(cfg.Resolver.DictionaryFile)
		if err != nil {
			return nil, fmt.Errorf("offline dictionary: %w", err)
		}
		logger.Debug("Using offline dictionary", "path", cfg.Resolver.DictionaryFile, "entries", dict.Len())
		return dict, nil
	case config.ProviderOpenAI, "":
		client := ingredient.NewOpenAIClient(cfg.OpenAIConfig(), logger)
		if !client.HasAPIKey() {
			logger.Warn("No categorizer API key set, text will resolve to no ingredients",
				"env", config.APIKeyEnvVar)
		}
		cached := ingredient.NewCachedCategorizer(client, cfg.CacheConfig(), logger)
		a.closers = append(a.closers, cached.Close)
		return cached, nil
	default:
		return nil, errors.New("unknown resolver provider: " + cfg.Resolver.Provider)
	}
}
