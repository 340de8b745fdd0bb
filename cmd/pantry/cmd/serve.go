package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/config"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingredient extraction HTTP server",
	Long: `Start an HTTP server exposing the pipeline.

Endpoints:
  POST /v1/ingredients   multipart upload, form field "images"
  GET  /ws/ingredients   WebSocket with per-image progress
  GET  /health           health check
  GET  /metrics          Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	d := config.DefaultConfig().Server
	serveCmd.Flags().String("host", d.Host, "listen host")
	serveCmd.Flags().IntP("port", "p", d.Port, "listen port")
	serveCmd.Flags().String("cors-origin", d.CORSOrigin, "Access-Control-Allow-Origin value")
	serveCmd.Flags().Int("max-upload-mb", d.MaxUploadMB, "maximum request body size in MB")
	serveCmd.Flags().Int("max-files", d.MaxFiles, "maximum images per request")
	serveCmd.Flags().Bool("rate-limit", d.RateLimit.Enabled, "enable per-client rate limiting")
	serveCmd.Flags().Int("requests-per-minute", d.RateLimit.RequestsPerMinute, "requests per client per minute when rate limiting")
	serveCmd.Flags().Int("workers", 1, "number of images processed in parallel per request")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	applyServeFlags(cmd, cfg)
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

	srv, err := server.NewServer(serverConfig(cfg), a.pipeline, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	return srv.ListenAndServe(ctx)
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-mb") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt("max-upload-mb")
	}
	if flags.Changed("max-files") {
		cfg.Server.MaxFiles, _ = flags.GetInt("max-files")
	}
	if flags.Changed("rate-limit") {
		cfg.Server.RateLimit.Enabled, _ = flags.GetBool("rate-limit")
	}
	if flags.Changed("requests-per-minute") {
		cfg.Server.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("workers") {
		cfg.Pipeline.Workers, _ = flags.GetInt("workers")
	}
}

// serverConfig maps the application config onto the server's settings.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		CORSOrigin:      cfg.Server.CORSOrigin,
		MaxUploadMB:     int64(cfg.Server.MaxUploadMB),
		MaxFiles:        cfg.Server.MaxFiles,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		TempPrefix:      cfg.Pipeline.TempPrefix,
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
		},
	}
}
