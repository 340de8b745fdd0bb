package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/version"
)

// uploadField is the multipart form field carrying the images.
const uploadField = "images"

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to disk.
const multipartMemory = 8 << 20

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, _, _ := version.Info()
	w.Header().Set("Content-Type", "application/json")
	s.encode(w, HealthResponse{
		Status:  "healthy",
		Version: v,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// ingredientsHandler accepts a multipart batch of photos and returns the
// aggregated ingredient list.
func (s *Server) ingredientsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqID := uuid.NewString()
	logger := s.logger.With("request_id", reqID)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB", s.cfg.MaxUploadMB))
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("no files in form field %q", uploadField))
		return
	}
	if len(files) > s.cfg.MaxFiles {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("too many files: %d (max %d)", len(files), s.cfg.MaxFiles))
		return
	}

	batch, err := s.stageUploads(multipartUploads(files))
	if err != nil {
		logger.Error("Failed to stage uploads", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store uploads")
		return
	}
	defer batch.Cleanup()

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	logger.Info("Processing upload", "images", len(files))
	res, err := s.pipeline.WithProgress(pipeline.NewLogProgressCallback(logger, slog.LevelDebug)).Run(ctx, batch.paths)
	if err != nil {
		logger.Warn("Batch aborted", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "request cancelled: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.encode(w, newIngredientsResponse(reqID, res, batch.names))
}

// newIngredientsResponse reports per-image results under the client's file
// names rather than the staged temp paths.
func newIngredientsResponse(reqID string, res *pipeline.BatchResult, names []string) IngredientsResponse {
	images := make([]pipeline.ImageResult, len(res.Images))
	for i, r := range res.Images {
		images[i] = clientResult(r, names)
	}

	return IngredientsResponse{
		Success:     true,
		RequestID:   reqID,
		Ingredients: res.Ingredients,
		Names:       res.Names,
		Images:      images,
		Processed:   res.Processed(),
		Skipped:     res.Skipped(),
		DurationMs:  res.Duration.Milliseconds(),
	}
}

// clientResult renames r to the client's file name. The staged temp path is
// also replaced inside the error text so it never reaches the client.
func clientResult(r pipeline.ImageResult, names []string) pipeline.ImageResult {
	if r.Index < 0 || r.Index >= len(names) {
		return r
	}
	staged := r.Path
	r.Path = names[r.Index]

	var serr *pipeline.StageError
	if errors.As(r.Err, &serr) {
		cp := *serr
		cp.Path = r.Path
		r.Err = &cp
	}
	if staged != "" && r.Error != "" {
		r.Error = strings.ReplaceAll(r.Error, staged, r.Path)
	}
	return r
}
