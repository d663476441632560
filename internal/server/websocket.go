package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/grovecrm/cardscan/internal/orchestrate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsMessage is a server-to-client frame: stage progress while the scan
// runs, then a final result frame.
type wsMessage struct {
	Type   string `json:"type"` // "progress" or "result"
	Stage  string `json:"stage,omitempty"`
	Detail string `json:"detail,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// scanWebSocketHandler accepts one binary frame holding the image bytes,
// streams stage transitions as the scan progresses and closes with the
// result frame.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	s.logger.Info("websocket connection established", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(s.cfg.MaxUploadSize)
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	if msgType != websocket.BinaryMessage || len(raw) == 0 {
		_ = conn.WriteJSON(wsMessage{Type: "result", Error: "expected a binary frame with image bytes"})
		return
	}

	// Serialize writes; progress callbacks may interleave with the final
	// result write.
	var mu sync.Mutex
	progress := func(state orchestrate.State, detail string) {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.WriteJSON(wsMessage{Type: "progress", Stage: state.String(), Detail: detail})
	}

	res := s.scans.ScanWithProgress(r.Context(), raw, progress)

	mu.Lock()
	defer mu.Unlock()
	if res.Err != "" {
		_ = conn.WriteJSON(wsMessage{Type: "result", Error: res.Err})
		return
	}
	_ = conn.WriteJSON(wsMessage{Type: "result", Result: res})
}
