package emit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingEmitter counts calls for fan-out tests.
type recordingEmitter struct {
	mu          sync.Mutex
	transcripts []string
	started     int
	stopped     int
	errored     int
}

func (r *recordingEmitter) TranscriptAccepted(text string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, text)
}

func (r *recordingEmitter) CaptureStarted(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recordingEmitter) CaptureStopped(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
}

func (r *recordingEmitter) CaptureError(string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errored++
}

func TestMultiFanOut(t *testing.T) {
	first := &recordingEmitter{}
	second := &recordingEmitter{}
	m := Multi{first, second}

	m.TranscriptAccepted("hello", time.Now())
	m.CaptureStarted("s1")
	m.CaptureStopped("s1")
	m.CaptureError("s1", "boom")

	for i, r := range []*recordingEmitter{first, second} {
		if len(r.transcripts) != 1 || r.transcripts[0] != "hello" {
			t.Errorf("Emitter %d: transcripts %v", i, r.transcripts)
		}
		if r.started != 1 || r.stopped != 1 || r.errored != 1 {
			t.Errorf("Emitter %d: lifecycle counts %d/%d/%d", i, r.started, r.stopped, r.errored)
		}
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// Give the hub a moment to register the connection
	waitForClients(t, hub, 1)

	sent := time.Now()
	hub.TranscriptAccepted("the answer is eventual consistency", sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if ev.Type != "transcript_accepted" {
		t.Errorf("Expected type transcript_accepted, got %s", ev.Type)
	}
	if ev.Text != "the answer is eventual consistency" {
		t.Errorf("Unexpected text: %q", ev.Text)
	}

	if stats := hub.GetStats(); stats.EventsSent != 1 {
		t.Errorf("Expected 1 event sent, got %d", stats.EventsSent)
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting with no clients must not panic or block
	hub.CaptureStarted("s1")
}

// waitForClients polls until the hub reports the expected client count.
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetStats().Connections == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Hub never reached %d clients (have %d)", want, hub.GetStats().Connections)
}
