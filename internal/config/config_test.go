package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Capture: CaptureConfig{
			SampleRate: 22050,
			Channels:   1,
			BitDepth:   16,
			FrameSize:  2048,
		},
		Detector: DetectorConfig{
			SpeechThreshold:       0.01,
			PeakThreshold:         0.15,
			SilenceThreshold:      1.5,
			ShortSilenceThreshold: 0.8,
			LongSpeechCutoff:      10.0,
			MinSpeechDuration:     0.5,
			MonitorInterval:       0.025,
		},
		Buffer: BufferConfig{
			PreRollFrames: 1,
			MinFlushBytes: 8192,
			MaxSpanWait:   15.0,
			FlushInterval: 0.1,
		},
		Encoder: EncoderConfig{
			PeakFloor:    0.12,
			AverageFloor: 0.008,
		},
		Dispatcher: DispatcherConfig{
			QueueSize:    8,
			Concurrency:  1,
			MinInterval:  1.0,
			MinClipBytes: 16384,
		},
		Filter: FilterConfig{
			SimilarityThreshold: 0.8,
			HistorySize:         5,
			MinChars:            10,
			MinWords:            3,
		},
		Transcription: TranscriptionConfig{
			Provider: "openai",
			Model:    "whisper-1",
			Language: "en",
			Timeout:  30,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Address: "127.0.0.1",
			Port:    8090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid configuration", func(*Config) {}, false},
		{"invalid sample rate", func(c *Config) { c.Capture.SampleRate = 4000 }, true},
		{"stereo capture", func(c *Config) { c.Capture.Channels = 2 }, true},
		{"invalid bit depth", func(c *Config) { c.Capture.BitDepth = 8 }, true},
		{"tiny frame size", func(c *Config) { c.Capture.FrameSize = 16 }, true},
		{"zero speech threshold", func(c *Config) { c.Detector.SpeechThreshold = 0 }, true},
		{"peak below speech threshold", func(c *Config) { c.Detector.PeakThreshold = 0.001 }, true},
		{"short silence above silence", func(c *Config) { c.Detector.ShortSilenceThreshold = 2.0 }, true},
		{"zero monitor interval", func(c *Config) { c.Detector.MonitorInterval = 0 }, true},
		{"flush interval above max wait", func(c *Config) { c.Buffer.FlushInterval = 20.0 }, true},
		{"average floor above peak floor", func(c *Config) { c.Encoder.AverageFloor = 0.5 }, true},
		{"zero queue size", func(c *Config) { c.Dispatcher.QueueSize = 0 }, true},
		{"similarity threshold above one", func(c *Config) { c.Filter.SimilarityThreshold = 1.5 }, true},
		{"unknown provider", func(c *Config) { c.Transcription.Provider = "azure" }, true},
		{"http provider without endpoint", func(c *Config) { c.Transcription.Provider = "http" }, true},
		{"empty model", func(c *Config) { c.Transcription.Model = "" }, true},
		{"invalid http port", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	content := `
capture:
  sample_rate: 22050
  channels: 1
  bit_depth: 16
  frame_size: 2048

detector:
  speech_threshold: 0.01
  peak_threshold: 0.15
  silence_threshold: 1.5
  short_silence_threshold: 0.8
  long_speech_cutoff: 10.0
  min_speech_duration: 0.5
  monitor_interval: 0.025

buffer:
  pre_roll_frames: 1
  min_flush_bytes: 8192
  max_span_wait: 15.0
  flush_interval: 0.1

encoder:
  peak_floor: 0.12
  average_floor: 0.008

dispatcher:
  queue_size: 8
  concurrency: 1
  min_interval: 1.0
  min_clip_bytes: 16384

filter:
  similarity_threshold: 0.8
  history_size: 5
  min_chars: 10
  min_words: 3

transcription:
  provider: openai
  model: whisper-1
  language: en
  timeout: 30

http:
  enabled: true
  address: 127.0.0.1
  port: 8090

logging:
  level: debug
  format: json
  output: stdout
`

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Capture.SampleRate != 22050 {
		t.Errorf("Expected sample rate 22050, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Detector.SpeechThreshold != 0.01 {
		t.Errorf("Expected speech threshold 0.01, got %f", cfg.Detector.SpeechThreshold)
	}
	if cfg.Transcription.Provider != "openai" {
		t.Errorf("Expected provider openai, got %s", cfg.Transcription.Provider)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestConfigLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("capture: [not a map"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := validConfig()

	if got := cfg.Detector.GetSilenceThreshold(); got != 1500*time.Millisecond {
		t.Errorf("GetSilenceThreshold = %s, expected 1.5s", got)
	}
	if got := cfg.Detector.GetShortSilenceThreshold(); got != 800*time.Millisecond {
		t.Errorf("GetShortSilenceThreshold = %s, expected 800ms", got)
	}
	if got := cfg.Detector.GetMinSpeechDuration(); got != 500*time.Millisecond {
		t.Errorf("GetMinSpeechDuration = %s, expected 500ms", got)
	}
	if got := cfg.Detector.GetMonitorInterval(); got != 25*time.Millisecond {
		t.Errorf("GetMonitorInterval = %s, expected 25ms", got)
	}
	if got := cfg.Buffer.GetMaxSpanWait(); got != 15*time.Second {
		t.Errorf("GetMaxSpanWait = %s, expected 15s", got)
	}
	if got := cfg.Dispatcher.GetMinInterval(); got != time.Second {
		t.Errorf("GetMinInterval = %s, expected 1s", got)
	}
	if got := cfg.Transcription.GetTimeoutDuration(); got != 30*time.Second {
		t.Errorf("GetTimeoutDuration = %s, expected 30s", got)
	}
}
