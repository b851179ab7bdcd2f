package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// recognizeWebSocketHandler answers every frame with one result or error
// object. Text frames carry {"image_path": url}; binary frames carry
// encoded image bytes.
func (s *Server) recognizeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established",
		"request_id", RequestID(r.Context()),
		"remote_addr", r.RemoteAddr)

	s.serveWebSocket(r, conn)
}

func (s *Server) serveWebSocket(r *http.Request, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		resp := s.handleFrame(r, messageType, data)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			slog.Warn("WebSocket write error", "error", err)
			return
		}
		websocketMessagesTotal.WithLabelValues("sent").Inc()
	}
}

func (s *Server) handleFrame(r *http.Request, messageType int, data []byte) pipeline.Response {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()

	var imgData []byte
	switch messageType {
	case websocket.BinaryMessage:
		imgData = data
	case websocket.TextMessage:
		var req ProcessImageRequest
		if err := json.Unmarshal(data, &req); err != nil || req.ImagePath == "" {
			return pipeline.Response{Error: "Invalid request: expected {\"image_path\": url}"}
		}
		fetched, err := s.fetcher.Fetch(ctx, req.ImagePath)
		if err != nil {
			s.observe(ctx, "websocket", start, nil, err)
			return pipeline.NewResponse(pipeline.Result{}, err)
		}
		imgData = fetched
	default:
		return pipeline.Response{Error: "Invalid request: unsupported frame type"}
	}
	uploadSizeBytes.Observe(float64(len(imgData)))

	img, _, err := acquire.Decode(imgData)
	if err != nil {
		s.observe(ctx, "websocket", start, nil, err)
		return pipeline.NewResponse(pipeline.Result{}, err)
	}
	res, trace, err := s.process(ctx, img)
	s.observe(ctx, "websocket", start, trace, err)
	return pipeline.NewResponse(res, err)
}
