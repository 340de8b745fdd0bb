package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
)

func dialWebSocket(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/ingredients"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) WebSocketResponse {
	t.Helper()
	var msg WebSocketResponse
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_ProgressThenResult(t *testing.T) {
	server := newTestServer(t, nil)
	conn := dialWebSocket(t, server)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{
		Type: wsTypeExtract,
		Images: []WebSocketImage{
			{Filename: "tomato.png", Data: pngOfWidth(t, tomatoWidth)},
			{Filename: "onion.png", Data: pngOfWidth(t, onionWidth)},
		},
	}))

	started := readResponse(t, conn)
	assert.Equal(t, wsTypeStarted, started.Type)
	assert.Equal(t, 2, started.Total)
	reqID := started.RequestID
	require.NotEmpty(t, reqID)

	for i := 1; i <= 2; i++ {
		msg := readResponse(t, conn)
		require.Equal(t, wsTypeProgress, msg.Type)
		assert.Equal(t, i, msg.Done)
		assert.Equal(t, 2, msg.Total)
		require.NotNil(t, msg.Image)
		assert.Equal(t, pipeline.StateDone, msg.Image.State)
		assert.True(t, strings.HasSuffix(msg.Image.Path, ".png"))
		assert.NotContains(t, msg.Image.Path, "temp_")
	}

	final := readResponse(t, conn)
	require.Equal(t, wsTypeResult, final.Type)
	assert.Equal(t, reqID, final.RequestID)
	require.NotNil(t, final.Result)
	assert.Equal(t, "onion, tomato", final.Result.Ingredients)
	assert.Equal(t, "tomato.png", final.Result.Images[0].Path)
}

func TestWebSocket_BadRequests(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.MaxFiles = 1 })
	conn := dialWebSocket(t, server)

	tests := []struct {
		name    string
		payload string
		errMsg  string
	}{
		{name: "invalid json", payload: "{", errMsg: "invalid request"},
		{name: "unknown type", payload: `{"type":"pdf"}`, errMsg: "unknown request type"},
		{name: "no images", payload: `{"type":"extract","images":[]}`, errMsg: "no images"},
		{
			name:    "too many",
			payload: `{"type":"extract","images":[{"filename":"a.png","data":""},{"filename":"b.png","data":""}]}`,
			errMsg:  "too many files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			msg := readResponse(t, conn)
			assert.Equal(t, wsTypeError, msg.Type)
			assert.Contains(t, msg.Error, tt.errMsg)
		})
	}
}

func TestWebSocket_UndecodableImageIsSkipped(t *testing.T) {
	server := newTestServer(t, nil)
	conn := dialWebSocket(t, server)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{
		Type:   wsTypeExtract,
		Images: []WebSocketImage{{Filename: "junk.png", Data: []byte("junk")}},
	}))

	assert.Equal(t, wsTypeStarted, readResponse(t, conn).Type)
	progress := readResponse(t, conn)
	require.NotNil(t, progress.Image)
	assert.True(t, progress.Image.Skipped())

	final := readResponse(t, conn)
	require.Equal(t, wsTypeResult, final.Type)
	assert.Empty(t, final.Result.Ingredients)
	assert.Equal(t, 1, final.Result.Skipped)
}
