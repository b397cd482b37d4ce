package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:       endpoint,
		APIKey:         "test-key",
		Timeout:        5 * time.Second,
		ResponseFormat: "json",
	}
}

func TestClientTranscribe(t *testing.T) {
	clip := testClip("clip-123", 4096)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header: %s", auth)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("clip_id"); got != "clip-123" {
			t.Errorf("Expected clip_id clip-123, got %s", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("Missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "clip-123.wav" {
			t.Errorf("Expected filename clip-123.wav, got %s", header.Filename)
		}

		json.NewEncoder(w).Encode(map[string]string{"text": "hello world"})
	}))
	defer server.Close()

	client, err := NewClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := client.Transcribe(context.Background(), clip, Hints{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Expected text 'hello world', got %q", text)
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 || stats.TotalRequests != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestClientFormatRejection(t *testing.T) {
	codes := []int{
		http.StatusBadRequest,
		http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType,
		http.StatusUnprocessableEntity,
	}

	for _, code := range codes {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad payload", code)
		}))

		client, err := NewClient(testClientConfig(server.URL))
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		_, err = client.Transcribe(context.Background(), testClip("c", 1024), Hints{})
		server.Close()

		if err == nil {
			t.Fatalf("Status %d: expected error", code)
		}
		if !IsFormatRejected(err) {
			t.Errorf("Status %d not classified as format rejection: %v", code, err)
		}
	}
}

func TestClientTransientFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Transcribe(context.Background(), testClip("c", 1024), Hints{})
	if err == nil {
		t.Fatal("Expected error for HTTP 500")
	}
	if IsFormatRejected(err) {
		t.Errorf("Server error classified as format rejection: %v", err)
	}
}

func TestClientTextResponseFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("  plain transcript  \n"))
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.ResponseFormat = "text"
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := client.Transcribe(context.Background(), testClip("c", 1024), Hints{})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "plain transcript" {
		t.Errorf("Expected trimmed text, got %q", text)
	}
}

func TestClientSingleAttempt(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), testClip("c", 1024), Hints{}); err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", attempts)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{APIKey: "k"}); err == nil {
		t.Error("Expected error for empty endpoint")
	}
	if _, err := NewClient(ClientConfig{Endpoint: "http://localhost"}); err == nil {
		t.Error("Expected error for empty API key")
	}
}
