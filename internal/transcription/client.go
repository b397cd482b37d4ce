package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
)

// ClientConfig contains HTTP transcription client configuration.
type ClientConfig struct {
	Endpoint       string
	APIKey         string
	Timeout        time.Duration
	ResponseFormat string // "json" or "text"
}

// Client submits encoded clips to a Whisper-compatible HTTP transcription
// endpoint as multipart form data. Each call makes a single attempt; there
// is no retry loop here or anywhere above it.
type Client struct {
	config     ClientConfig
	httpClient *http.Client

	// statistics
	mu              sync.Mutex
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	formatRejects   uint64
}

// ClientStats is a snapshot of client activity.
type ClientStats struct {
	TotalRequests   uint64 `json:"total_requests"`
	SuccessRequests uint64 `json:"success_requests"`
	FailedRequests  uint64 `json:"failed_requests"`
	FormatRejects   uint64 `json:"format_rejects"`
}

// transcriptionResponse is the JSON body returned by the endpoint.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewClient creates an HTTP transcription client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ResponseFormat == "" {
		config.ResponseFormat = "json"
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Transcribe implements Provider with a single HTTP attempt.
func (c *Client) Transcribe(ctx context.Context, clip *audio.Clip, hints Hints) (string, error) {
	c.count(&c.totalRequests)

	body, contentType, err := c.buildMultipart(clip, hints)
	if err != nil {
		c.count(&c.failedRequests)
		return "", fmt.Errorf("failed to build multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		c.count(&c.failedRequests)
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.count(&c.failedRequests)
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.count(&c.failedRequests)
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if isFormatRejection(resp.StatusCode) {
		c.count(&c.failedRequests)
		c.count(&c.formatRejects)
		return "", fmt.Errorf("HTTP %d: %s: %w", resp.StatusCode, truncate(respBody), ErrFormatRejected)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.count(&c.failedRequests)
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, truncate(respBody))
	}

	text, err := c.parseResponse(respBody)
	if err != nil {
		c.count(&c.failedRequests)
		return "", err
	}

	c.count(&c.successRequests)
	return text, nil
}

// GetStats returns a snapshot of client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		FormatRejects:   c.formatRejects,
	}
}

// buildMultipart assembles the multipart form body: the clip file plus
// request fields.
func (c *Client) buildMultipart(clip *audio.Clip, hints Hints) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", clip.ID+".wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(clip.Bytes); err != nil {
		return nil, "", fmt.Errorf("failed to write clip bytes: %w", err)
	}

	fields := map[string]string{
		"clip_id":         clip.ID,
		"format":          clip.MIME,
		"duration":        fmt.Sprintf("%.3f", clip.ApproxDuration.Seconds()),
		"size_bytes":      fmt.Sprintf("%d", clip.SizeBytes),
		"response_format": c.config.ResponseFormat,
	}
	if hints.Language != "" {
		fields["language"] = hints.Language
	}
	if hints.Model != "" {
		fields["model"] = hints.Model
	}
	if hints.Prompt != "" {
		fields["prompt"] = hints.Prompt
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// parseResponse extracts the recognized text according to ResponseFormat.
func (c *Client) parseResponse(body []byte) (string, error) {
	if c.config.ResponseFormat == "text" {
		return string(bytes.TrimSpace(body)), nil
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return parsed.Text, nil
}

// isFormatRejection classifies status codes that indicate the payload
// itself was rejected, as opposed to a transient server/network condition.
func isFormatRejection(status int) bool {
	switch status {
	case http.StatusBadRequest,
		http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType,
		http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func (c *Client) count(field *uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*field++
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
