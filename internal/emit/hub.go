package emit

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds each broadcast write so one stuck client cannot stall
// the others.
const writeTimeout = 2 * time.Second

// wsEvent is the JSON wire format sent to display clients.
type wsEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub is a WebSocket Emitter: it broadcasts pipeline events as JSON to all
// locally connected display clients. Clients that fail a write are dropped.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	eventsSent uint64
}

// HubStats is a snapshot of hub activity.
type HubStats struct {
	Connections int    `json:"connections"`
	EventsSent  uint64 `json:"events_sent_total"`
}

// NewHub creates a WebSocket hub. Connections come from the local overlay
// process only, so origin checks are disabled.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// HandleWS upgrades an HTTP request and registers the client for broadcasts.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	count := len(h.conns)
	h.mu.Unlock()

	h.logger.Info("display client connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("clients", count),
	)

	// Read pump: discard inbound messages, detect disconnects.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

// GetStats returns a snapshot of hub statistics.
func (h *Hub) GetStats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return HubStats{
		Connections: len(h.conns),
		EventsSent:  h.eventsSent,
	}
}

// TranscriptAccepted implements Emitter.
func (h *Hub) TranscriptAccepted(text string, receivedAt time.Time) {
	h.broadcast(wsEvent{Type: "transcript_accepted", Text: text, Timestamp: receivedAt})
}

// CaptureStarted implements Emitter.
func (h *Hub) CaptureStarted(sessionID string) {
	h.broadcast(wsEvent{Type: "audio_capture_started", SessionID: sessionID, Timestamp: time.Now()})
}

// CaptureStopped implements Emitter.
func (h *Hub) CaptureStopped(sessionID string) {
	h.broadcast(wsEvent{Type: "audio_capture_stopped", SessionID: sessionID, Timestamp: time.Now()})
}

// CaptureError implements Emitter.
func (h *Hub) CaptureError(sessionID, message string) {
	h.broadcast(wsEvent{Type: "audio_capture_error", SessionID: sessionID, Message: message, Timestamp: time.Now()})
}

// broadcast sends one event to every connected client, dropping clients
// whose writes fail.
func (h *Hub) broadcast(ev wsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Warn("dropping display client after write failure",
				slog.String("error", err.Error()),
			)
			conn.Close()
			delete(h.conns, conn)
			continue
		}
		h.eventsSent++
	}
}

// drop removes a client after its read pump ends.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[conn]; ok {
		conn.Close()
		delete(h.conns, conn)
	}
}
