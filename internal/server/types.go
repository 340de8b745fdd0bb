// Package server exposes the ingredient pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	cfg         Config
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// RateLimitConfig limits requests per client IP.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	MaxFiles        int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TempDir         string // parent of per-request upload dirs; "" = os.TempDir()
	TempPrefix      string // upload file-name prefix, must match the pipeline temp policy
	RateLimit       RateLimitConfig
}

// DefaultConfig returns the settings used by `pantry serve` without a config file.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		CORSOrigin:      "*",
		MaxUploadMB:     50,
		MaxFiles:        20,
		RequestTimeout:  2 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
		TempPrefix:      "temp_",
		RateLimit:       RateLimitConfig{RequestsPerMinute: 60},
	}
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// IngredientsResponse is returned by POST /v1/ingredients.
type IngredientsResponse struct {
	Success     bool                   `json:"success"`
	RequestID   string                 `json:"request_id"`
	Ingredients string                 `json:"ingredients"`
	Names       []string               `json:"names"`
	Images      []pipeline.ImageResult `json:"images,omitempty"`
	Processed   int                    `json:"processed"`
	Skipped     int                    `json:"skipped"`
	DurationMs  int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a server around an already constructed pipeline.
func NewServer(cfg Config, p *pipeline.Pipeline, logger *slog.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("server: pipeline is required")
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("server: max upload size must be positive, got %d", cfg.MaxUploadMB)
	}
	if cfg.MaxFiles <= 0 {
		return nil, fmt.Errorf("server: max files must be positive, got %d", cfg.MaxFiles)
	}
	if cfg.TempPrefix == "" {
		cfg.TempPrefix = DefaultConfig().TempPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{pipeline: p, cfg: cfg, logger: logger}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMinute)
	}
	return s, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/ingredients", s.corsMiddleware(s.rateLimitMiddleware(s.ingredientsHandler)))
	mux.HandleFunc("/ws/ingredients", s.rateLimitMiddleware(s.ingredientsWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a ready mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down server", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
