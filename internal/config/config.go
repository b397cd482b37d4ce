package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Capture       CaptureConfig       `yaml:"capture"`
	Detector      DetectorConfig      `yaml:"detector"`
	Buffer        BufferConfig        `yaml:"buffer"`
	Encoder       EncoderConfig       `yaml:"encoder"`
	Dispatcher    DispatcherConfig    `yaml:"dispatcher"`
	Filter        FilterConfig        `yaml:"filter"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// CaptureConfig contains audio capture parameters
type CaptureConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
	FrameSize  int `yaml:"frame_size"` // samples per frame
}

// DetectorConfig contains speech boundary detection parameters
type DetectorConfig struct {
	SpeechThreshold       float64 `yaml:"speech_threshold"`
	PeakThreshold         float64 `yaml:"peak_threshold"`
	SilenceThreshold      float64 `yaml:"silence_threshold"`       // seconds
	ShortSilenceThreshold float64 `yaml:"short_silence_threshold"` // seconds
	LongSpeechCutoff      float64 `yaml:"long_speech_cutoff"`      // seconds
	MinSpeechDuration     float64 `yaml:"min_speech_duration"`     // seconds
	MonitorInterval       float64 `yaml:"monitor_interval"`        // seconds
}

// BufferConfig contains span buffer parameters
type BufferConfig struct {
	PreRollFrames int     `yaml:"pre_roll_frames"`
	MinFlushBytes int     `yaml:"min_flush_bytes"`
	MaxSpanWait   float64 `yaml:"max_span_wait"`  // seconds
	FlushInterval float64 `yaml:"flush_interval"` // seconds
}

// EncoderConfig contains clip encoding and audibility parameters
type EncoderConfig struct {
	PeakFloor    float64 `yaml:"peak_floor"`
	AverageFloor float64 `yaml:"average_floor"`
}

// DispatcherConfig contains transcription dispatch queue parameters
type DispatcherConfig struct {
	QueueSize    int     `yaml:"queue_size"`
	Concurrency  int     `yaml:"concurrency"`
	MinInterval  float64 `yaml:"min_interval"` // seconds
	MinClipBytes int     `yaml:"min_clip_bytes"`
}

// FilterConfig contains duplicate/noise filter parameters
type FilterConfig struct {
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
	HistorySize         int      `yaml:"history_size"`
	MinChars            int      `yaml:"min_chars"`
	MinWords            int      `yaml:"min_words"`
	Stoplist            []string `yaml:"stoplist"`
}

// TranscriptionConfig contains transcription provider configuration
type TranscriptionConfig struct {
	Provider string `yaml:"provider"` // "openai" or "http"
	Endpoint string `yaml:"endpoint"` // http provider only
	APIKey   string `yaml:"api_key"`  // overridden by OPENAI_API_KEY when set
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Prompt   string `yaml:"prompt"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// HTTPConfig contains HTTP control API configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector config: %w", err)
	}

	if err := c.Buffer.Validate(); err != nil {
		return fmt.Errorf("buffer config: %w", err)
	}

	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("encoder config: %w", err)
	}

	if err := c.Dispatcher.Validate(); err != nil {
		return fmt.Errorf("dispatcher config: %w", err)
	}

	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("filter config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", c.SampleRate)
	}

	if c.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", c.Channels)
	}

	if c.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", c.BitDepth)
	}

	if c.FrameSize < 64 || c.FrameSize > 16384 {
		return fmt.Errorf("frame_size must be between 64 and 16384 samples, got %d", c.FrameSize)
	}

	return nil
}

// Validate validates detector configuration
func (d *DetectorConfig) Validate() error {
	if d.SpeechThreshold <= 0 || d.SpeechThreshold > 1 {
		return fmt.Errorf("speech_threshold must be between 0 and 1, got %f", d.SpeechThreshold)
	}

	if d.PeakThreshold < d.SpeechThreshold || d.PeakThreshold > 1 {
		return fmt.Errorf("peak_threshold must be between speech_threshold and 1, got %f", d.PeakThreshold)
	}

	if d.SilenceThreshold <= 0 {
		return fmt.Errorf("silence_threshold must be positive, got %f", d.SilenceThreshold)
	}

	if d.ShortSilenceThreshold <= 0 || d.ShortSilenceThreshold > d.SilenceThreshold {
		return fmt.Errorf("short_silence_threshold (%f) must be positive and not exceed silence_threshold (%f)",
			d.ShortSilenceThreshold, d.SilenceThreshold)
	}

	if d.LongSpeechCutoff <= 0 {
		return fmt.Errorf("long_speech_cutoff must be positive, got %f", d.LongSpeechCutoff)
	}

	if d.MinSpeechDuration < 0 {
		return fmt.Errorf("min_speech_duration cannot be negative, got %f", d.MinSpeechDuration)
	}

	if d.MonitorInterval <= 0 {
		return fmt.Errorf("monitor_interval must be positive, got %f", d.MonitorInterval)
	}

	return nil
}

// Validate validates buffer configuration
func (b *BufferConfig) Validate() error {
	if b.PreRollFrames < 0 {
		return fmt.Errorf("pre_roll_frames cannot be negative, got %d", b.PreRollFrames)
	}

	if b.MinFlushBytes < 0 {
		return fmt.Errorf("min_flush_bytes cannot be negative, got %d", b.MinFlushBytes)
	}

	if b.MaxSpanWait <= 0 {
		return fmt.Errorf("max_span_wait must be positive, got %f", b.MaxSpanWait)
	}

	if b.FlushInterval <= 0 || b.FlushInterval > b.MaxSpanWait {
		return fmt.Errorf("flush_interval (%f) must be positive and not exceed max_span_wait (%f)",
			b.FlushInterval, b.MaxSpanWait)
	}

	return nil
}

// Validate validates encoder configuration
func (e *EncoderConfig) Validate() error {
	if e.PeakFloor < 0 || e.PeakFloor > 1 {
		return fmt.Errorf("peak_floor must be between 0 and 1, got %f", e.PeakFloor)
	}

	if e.AverageFloor < 0 || e.AverageFloor > e.PeakFloor {
		return fmt.Errorf("average_floor (%f) must be between 0 and peak_floor (%f)",
			e.AverageFloor, e.PeakFloor)
	}

	return nil
}

// Validate validates dispatcher configuration
func (d *DispatcherConfig) Validate() error {
	if d.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", d.QueueSize)
	}

	if d.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", d.Concurrency)
	}

	if d.MinInterval < 0 {
		return fmt.Errorf("min_interval cannot be negative, got %f", d.MinInterval)
	}

	if d.MinClipBytes < 0 {
		return fmt.Errorf("min_clip_bytes cannot be negative, got %d", d.MinClipBytes)
	}

	return nil
}

// Validate validates filter configuration
func (f *FilterConfig) Validate() error {
	if f.SimilarityThreshold <= 0 || f.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1, got %f", f.SimilarityThreshold)
	}

	if f.HistorySize < 1 {
		return fmt.Errorf("history_size must be at least 1, got %d", f.HistorySize)
	}

	if f.MinChars < 0 {
		return fmt.Errorf("min_chars cannot be negative, got %d", f.MinChars)
	}

	if f.MinWords < 0 {
		return fmt.Errorf("min_words cannot be negative, got %d", f.MinWords)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	validProviders := map[string]bool{"openai": true, "http": true}
	if !validProviders[t.Provider] {
		return fmt.Errorf("provider must be 'openai' or 'http', got '%s'", t.Provider)
	}

	if t.Provider == "http" && t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty for the http provider")
	}

	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetSilenceThreshold returns the silence window as a time.Duration
func (d *DetectorConfig) GetSilenceThreshold() time.Duration {
	return time.Duration(d.SilenceThreshold * float64(time.Second))
}

// GetShortSilenceThreshold returns the short silence window as a time.Duration
func (d *DetectorConfig) GetShortSilenceThreshold() time.Duration {
	return time.Duration(d.ShortSilenceThreshold * float64(time.Second))
}

// GetLongSpeechCutoff returns the long speech cutoff as a time.Duration
func (d *DetectorConfig) GetLongSpeechCutoff() time.Duration {
	return time.Duration(d.LongSpeechCutoff * float64(time.Second))
}

// GetMinSpeechDuration returns the minimum speech duration as a time.Duration
func (d *DetectorConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(d.MinSpeechDuration * float64(time.Second))
}

// GetMonitorInterval returns the monitor tick interval as a time.Duration
func (d *DetectorConfig) GetMonitorInterval() time.Duration {
	return time.Duration(d.MonitorInterval * float64(time.Second))
}

// GetMaxSpanWait returns the timeout flush threshold as a time.Duration
func (b *BufferConfig) GetMaxSpanWait() time.Duration {
	return time.Duration(b.MaxSpanWait * float64(time.Second))
}

// GetFlushInterval returns the flush tick interval as a time.Duration
func (b *BufferConfig) GetFlushInterval() time.Duration {
	return time.Duration(b.FlushInterval * float64(time.Second))
}

// GetMinInterval returns the submission pacing interval as a time.Duration
func (d *DispatcherConfig) GetMinInterval() time.Duration {
	return time.Duration(d.MinInterval * float64(time.Second))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
