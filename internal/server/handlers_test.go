package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/testutil"
)

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request success", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request not allowed", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.NotEmpty(t, response.Time)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_Ingredients(t *testing.T) {
	server := newTestServer(t, nil)

	req := multipartRequest(t, uploadField,
		formFile{name: "onion.png", data: pngOfWidth(t, onionWidth)},
		formFile{name: "tomato.png", data: pngOfWidth(t, tomatoWidth)},
		formFile{name: "broken.jpg", data: []byte("not an image")},
	)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp IngredientsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "onion, tomato", resp.Ingredients)
	assert.Equal(t, []string{"onion", "tomato"}, resp.Names)
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 1, resp.Skipped)

	require.Len(t, resp.Images, 3)
	assert.Equal(t, "onion.png", resp.Images[0].Path)
	assert.Equal(t, "broken.jpg", resp.Images[2].Path)
	assert.Equal(t, pipeline.StateSkipped, resp.Images[2].State)
	assert.Contains(t, resp.Images[2].Error, "broken.jpg")
	for _, img := range resp.Images {
		assert.NotContains(t, img.Error, "temp_")
		assert.NotContains(t, img.Error, "pantry-upload-")
	}

	// Staging directories are gone once the response is written.
	assert.Empty(t, testutil.ListFiles(t, server.cfg.TempDir))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_IngredientsEmptyResult(t *testing.T) {
	server := newTestServer(t, nil)

	req := multipartRequest(t, uploadField, formFile{name: "blank.png", data: pngOfWidth(t, blankWidth)})
	w := httptest.NewRecorder()
	server.ingredientsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp IngredientsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Ingredients)
	assert.Equal(t, 1, resp.Processed)
}

func TestServer_IngredientsRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		req    func(t *testing.T) *http.Request
		status int
		errMsg string
	}{
		{
			name:   "wrong method",
			req:    func(*testing.T) *http.Request { return httptest.NewRequest(http.MethodGet, "/v1/ingredients", nil) },
			status: http.StatusMethodNotAllowed,
		},
		{
			name: "not multipart",
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/v1/ingredients", strings.NewReader("{}"))
			},
			status: http.StatusBadRequest,
			errMsg: "invalid multipart form",
		},
		{
			name: "no files",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "other", formFile{name: "a.png", data: []byte("x")})
			},
			status: http.StatusBadRequest,
			errMsg: "no files",
		},
		{
			name:   "too many files",
			mutate: func(c *Config) { c.MaxFiles = 1 },
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, uploadField,
					formFile{name: "a.png", data: []byte("x")},
					formFile{name: "b.png", data: []byte("y")})
			},
			status: http.StatusBadRequest,
			errMsg: "too many files",
		},
		{
			name:   "upload too large",
			mutate: func(c *Config) { c.MaxUploadMB = 1 },
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, uploadField,
					formFile{name: "big.png", data: make([]byte, 2<<20)})
			},
			status: http.StatusRequestEntityTooLarge,
			errMsg: "exceeds 1 MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.mutate)
			w := httptest.NewRecorder()
			server.ingredientsHandler(w, tt.req(t))

			assert.Equal(t, tt.status, w.Code)
			if tt.errMsg != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.Contains(t, resp.Error, tt.errMsg)
			}
		})
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.CORSOrigin = "https://pantry.example" })

	req := httptest.NewRequest(http.MethodOptions, "/v1/ingredients", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://pantry.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Metrics(t *testing.T) {
	server := newTestServer(t, nil)
	h := server.Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pantry_http_requests_total")
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(DefaultConfig(), nil, nil)
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.MaxFiles = 0
	_, err = NewServer(cfg, newTestPipeline(t), nil)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.TempPrefix = ""
	s, err := NewServer(cfg, newTestPipeline(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "temp_", s.cfg.TempPrefix)
	assert.Equal(t, "localhost:8080", s.Addr())
}

func TestUploadExt(t *testing.T) {
	assert.Equal(t, ".jpg", uploadExt("Photo.JPG"))
	assert.Equal(t, ".webp", uploadExt("x.webp"))
	assert.Empty(t, uploadExt("payload.exe"))
	assert.Empty(t, uploadExt("noext"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", getClientIP(req))
}

func TestClientResult(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "pantry-upload-1", "temp_abc.jpg")
	serr := &pipeline.StageError{
		Stage: "load",
		Index: 1,
		Path:  staged,
		Err:   fmt.Errorf("open %s: %w", staged, os.ErrNotExist),
	}
	r := pipeline.ImageResult{
		Index: 1,
		Path:  staged,
		State: pipeline.StateSkipped,
		Err:   serr,
		Error: serr.Error(),
	}

	got := clientResult(r, []string{"a.png", "fridge.jpg"})
	assert.Equal(t, "fridge.jpg", got.Path)
	assert.NotContains(t, got.Error, staged)
	assert.Contains(t, got.Error, "fridge.jpg")
	assert.ErrorIs(t, got.Err, os.ErrNotExist)
	var gotErr *pipeline.StageError
	require.ErrorAs(t, got.Err, &gotErr)
	assert.Equal(t, "fridge.jpg", gotErr.Path)
	assert.Equal(t, staged, serr.Path, "the pipeline's error is not mutated")

	// Indices outside the name list are left alone.
	r.Index = 5
	assert.Equal(t, r, clientResult(r, []string{"a.png"}))
}
