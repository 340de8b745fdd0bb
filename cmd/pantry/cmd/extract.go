package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/config"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var extractCmd = &cobra.Command{
	Use:   "extract [images...]",
	Short: "Extract the ingredient list from one or more photos",
	Long: `Run the full pipeline over the given photos and print the aggregated
ingredient list.

Output formats:
  text  the comma-separated list, e.g. "onion, tomato"
  json  the full batch result including per-image details
  yaml  same as json, as YAML

Files whose name starts with the configured temp prefix (temp_) are deleted
after processing. Unreadable files are skipped with a warning.`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Int("workers", 1, "number of images processed in parallel")
	extractCmd.Flags().StringP("format", "f", formatText, "output format (text, json, yaml)")
	extractCmd.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")
	extractCmd.Flags().String("offline-dictionary", "", "resolve ingredients from a YAML dictionary instead of the remote categorizer")
	extractCmd.Flags().Bool("no-classifier", false, "disable the image classifier fallback")
	extractCmd.Flags().Bool("no-scene", false, "disable the scene-text OCR engine")
	extractCmd.Flags().Bool("no-tesseract", false, "disable the Tesseract OCR engine")
	extractCmd.Flags().Float64("threshold", 0.5, "minimum classifier confidence (exclusive) for a fallback label")
	extractCmd.Flags().Bool("no-progress", false, "do not print a progress bar to stderr")
}

func runExtract(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: pass one or more image paths", pipeline.ErrNoImages)
	}

	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}

	cfg := GetConfig()
	applyExtractFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.pipeline
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		p = p.WithProgress(progressCallback(cmd.ErrOrStderr(), slog.Default()))
	}

	res, err := p.Run(ctx, args)
	if err != nil {
		return fmt.Errorf("extraction aborted: %w", err)
	}

	out := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the user
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	return renderResult(out, res, format)
}

// progressCallback draws a progress bar when w is a terminal and logs
// progress through slog otherwise, so redirected stderr stays line-oriented.
func progressCallback(w io.Writer, logger *slog.Logger) pipeline.ProgressCallback {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return pipeline.NewConsoleProgressCallback(w, "images")
	}
	return pipeline.NewLogProgressCallback(logger, slog.LevelInfo)
}

// applyExtractFlags copies explicitly set flags over the loaded config.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Pipeline.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("threshold") {
		cfg.Classifier.Threshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("offline-dictionary") {
		cfg.Resolver.Provider = config.ProviderStatic
		cfg.Resolver.DictionaryFile, _ = flags.GetString("offline-dictionary")
	}
	if v, _ := flags.GetBool("no-classifier"); v {
		cfg.Classifier.Enabled = false
	}
	if v, _ := flags.GetBool("no-scene"); v {
		cfg.OCR.Scene.Enabled = false
	}
	if v, _ := flags.GetBool("no-tesseract"); v {
		cfg.OCR.Tesseract.Enabled = false
	}
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return errors.New("unsupported format: " + format + " (use text, json or yaml)")
	}
}

// renderResult writes res to w in the given format.
func renderResult(w io.Writer, res *pipeline.BatchResult, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, res.Ingredients)
		return err
	}
}
