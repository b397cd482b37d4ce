package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
)

// OpenAIProvider implements Provider against the OpenAI audio transcription
// API (Whisper models).
type OpenAIProvider struct {
	client oai.Client
	model  string
}

// OpenAIOption is a functional option for OpenAIProvider.
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	baseURL string
	timeout time.Duration
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *openaiConfig) {
		c.timeout = d
	}
}

// NewOpenAIProvider constructs an OpenAI-backed transcription provider.
func NewOpenAIProvider(apiKey, model string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}

	cfg := &openaiConfig{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // one attempt per clip; failures drop
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &OpenAIProvider{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Transcribe implements Provider.
func (p *OpenAIProvider) Transcribe(ctx context.Context, clip *audio.Clip, hints Hints) (string, error) {
	model := p.model
	if hints.Model != "" {
		model = hints.Model
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(clip.Bytes), clip.ID+".wav", clip.MIME),
		Model: oai.AudioModel(model),
	}
	if hints.Language != "" {
		params.Language = oai.String(hints.Language)
	}
	if hints.Prompt != "" {
		params.Prompt = oai.String(hints.Prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) && isFormatRejection(apiErr.StatusCode) {
			return "", fmt.Errorf("openai: %v: %w", err, ErrFormatRejected)
		}
		return "", fmt.Errorf("openai: transcription request failed: %w", err)
	}

	return resp.Text, nil
}
