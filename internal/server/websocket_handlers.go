package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/metrics"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/pipeline"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// Message types exchanged on /ws/ingredients.
const (
	wsTypeExtract  = "extract"
	wsTypeStarted  = "started"
	wsTypeProgress = "progress"
	wsTypeResult   = "result"
	wsTypeError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketImage is one image in a client request. Data is base64 in JSON.
type WebSocketImage struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// WebSocketRequest asks the server to extract ingredients from a batch.
type WebSocketRequest struct {
	Type   string           `json:"type"`
	Images []WebSocketImage `json:"images"`
}

// WebSocketResponse is every message the server pushes.
type WebSocketResponse struct {
	Type      string                `json:"type"`
	RequestID string                `json:"request_id,omitempty"`
	Done      int                   `json:"done,omitempty"`
	Total     int                   `json:"total,omitempty"`
	Image     *pipeline.ImageResult `json:"image,omitempty"`
	Result    *IngredientsResponse  `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg WebSocketResponse) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ingredientsWebSocketHandler streams per-image progress followed by the
// final result for each batch a client submits.
func (s *Server) ingredientsWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.WebsocketConnections.Inc()
	defer metrics.WebsocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.handleWebSocketConnection(ctx, &wsConn{conn: conn})
}

func (s *Server) handleWebSocketConnection(ctx context.Context, c *wsConn) {
	conn := c.conn
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := s.handleWebSocketMessage(ctx, c, data); err != nil {
			s.logger.Warn("WebSocket write failed", "error", err)
			return
		}
	}
}

// handleWebSocketMessage processes one request. The returned error is a
// write failure; request problems are reported to the client instead.
func (s *Server) handleWebSocketMessage(ctx context.Context, c *wsConn, data []byte) error {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return c.send(WebSocketResponse{Type: wsTypeError, Error: fmt.Sprintf("invalid request: %v", err)})
	}
	if req.Type != wsTypeExtract {
		return c.send(WebSocketResponse{Type: wsTypeError, Error: fmt.Sprintf("unknown request type %q", req.Type)})
	}
	if len(req.Images) == 0 {
		return c.send(WebSocketResponse{Type: wsTypeError, Error: "no images"})
	}
	if len(req.Images) > s.cfg.MaxFiles {
		return c.send(WebSocketResponse{
			Type:  wsTypeError,
			Error: fmt.Sprintf("too many files: %d (max %d)", len(req.Images), s.cfg.MaxFiles),
		})
	}

	reqID := uuid.NewString()
	uploads := make([]upload, len(req.Images))
	for i, img := range req.Images {
		name := img.Filename
		if name == "" {
			name = fmt.Sprintf("image-%d", i)
		}
		uploads[i] = bytesUpload(name, img.Data)
	}

	batch, err := s.stageUploads(uploads)
	if err != nil {
		s.logger.Error("Failed to stage uploads", "request_id", reqID, "error", err)
		return c.send(WebSocketResponse{Type: wsTypeError, RequestID: reqID, Error: "failed to store uploads"})
	}
	defer batch.Cleanup()

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	progress := &wsProgress{conn: c, reqID: reqID, names: batch.names}
	logged := pipeline.NewLogProgressCallback(s.logger.With("request_id", reqID), slog.LevelDebug)
	res, err := s.pipeline.WithProgress(pipeline.MultiProgressCallback{progress, logged}).Run(ctx, batch.paths)
	if progress.err != nil {
		return progress.err
	}
	if err != nil {
		return c.send(WebSocketResponse{Type: wsTypeError, RequestID: reqID, Error: "request cancelled: " + err.Error()})
	}

	out := newIngredientsResponse(reqID, res, batch.names)
	return c.send(WebSocketResponse{Type: wsTypeResult, RequestID: reqID, Result: &out})
}

// wsProgress forwards pipeline progress to the client. Run calls it from a
// single goroutine; the first write error is kept and later sends skipped.
type wsProgress struct {
	conn  *wsConn
	reqID string
	names []string
	err   error
}

func (p *wsProgress) send(msg WebSocketResponse) {
	if p.err != nil {
		return
	}
	p.err = p.conn.send(msg)
}

func (p *wsProgress) OnStart(total int) {
	p.send(WebSocketResponse{Type: wsTypeStarted, RequestID: p.reqID, Total: total})
}

func (p *wsProgress) OnImageDone(done, total int, result pipeline.ImageResult) {
	result = clientResult(result, p.names)
	p.send(WebSocketResponse{Type: wsTypeProgress, RequestID: p.reqID, Done: done, Total: total, Image: &result})
}

func (p *wsProgress) OnComplete(*pipeline.BatchResult) {}
