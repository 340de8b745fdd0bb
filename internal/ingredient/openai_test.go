package ingredient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIClient_Categorize(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "pantry/dev", r.Header.Get("User-Agent"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"  Onion \n"}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/"}, quietLogger())
	answer, err := c.Categorize(context.Background(), "organic red onion 500g")
	require.NoError(t, err)
	assert.Equal(t, "Onion", answer)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.Equal(t, 16, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Contains(t, got.Messages[1].Content, "Text to analyze: 'organic red onion 500g'")
}

func TestOpenAIClient_EmptyInputMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, quietLogger())
	_, err := c.Categorize(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, calls.Load())
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-2xx",
			status: http.StatusTooManyRequests,
			body:   `{"error":"rate limited"}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
				assert.Contains(t, apiErr.Body, "rate limited")
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrEmptyResponse)
			},
		},
		{
			name:   "bad json",
			status: http.StatusOK,
			body:   `{"choices":`,
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "decode")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, quietLogger())
			_, err := c.Categorize(context.Background(), "milk")
			tt.check(t, err)
		})
	}
}

func TestOpenAIClient_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewOpenAIClient(OpenAIConfig{BaseURL: "http://127.0.0.1:1"}, quietLogger())
	assert.False(t, c.HasAPIKey())
	_, err := c.Categorize(context.Background(), "milk")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAIClient_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, quietLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Categorize(ctx, "milk")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
