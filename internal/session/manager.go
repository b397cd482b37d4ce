package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
	"github.com/rahulrshetty45/CluelyClone/internal/capture"
	"github.com/rahulrshetty45/CluelyClone/internal/config"
	"github.com/rahulrshetty45/CluelyClone/internal/emit"
	"github.com/rahulrshetty45/CluelyClone/internal/filter"
	"github.com/rahulrshetty45/CluelyClone/internal/metrics"
	"github.com/rahulrshetty45/CluelyClone/internal/transcription"
	"github.com/rahulrshetty45/CluelyClone/internal/vad"
)

// SourceFactory creates the audio source for a new session.
type SourceFactory func() (capture.Source, error)

// Manager owns session lifecycle. At most one capture session runs at a
// time; starting while one is active is an error, as is stopping when none
// is.
type Manager struct {
	provider      transcription.Provider
	emitter       emit.Emitter
	metrics       *metrics.Metrics
	logger        *slog.Logger
	sourceFactory SourceFactory

	mu      sync.Mutex
	cfg     *config.Config
	current *Session
}

// ManagerStatus is a snapshot of the manager for the control API.
type ManagerStatus struct {
	Running bool    `json:"running"`
	Session *Status `json:"session,omitempty"`
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, provider transcription.Provider, emitter emit.Emitter,
	m *metrics.Metrics, logger *slog.Logger, sourceFactory SourceFactory) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if sourceFactory == nil {
		return nil, fmt.Errorf("source factory cannot be nil")
	}
	if emitter == nil {
		emitter = emit.Nop{}
	}

	return &Manager{
		provider:      provider,
		emitter:       emitter,
		metrics:       m,
		logger:        logger,
		sourceFactory: sourceFactory,
		cfg:           cfg,
	}, nil
}

// StartCapture builds a fresh pipeline from the current configuration and
// starts it. A start failure is surfaced both as the returned error and as a
// capture error event for display clients.
func (m *Manager) StartCapture(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.isFinishedLocked() {
		return "", fmt.Errorf("capture already running (session %s)", m.current.ID())
	}

	sess, err := m.buildSessionLocked()
	if err != nil {
		m.emitter.CaptureError("", err.Error())
		return "", err
	}

	if err := sess.Start(ctx); err != nil {
		m.emitter.CaptureError(sess.ID(), err.Error())
		return "", err
	}

	m.current = sess
	if m.metrics != nil {
		m.metrics.RecordSessionStarted()
	}
	m.emitter.CaptureStarted(sess.ID())

	return sess.ID(), nil
}

// StopCapture stops the active session, draining pending transcriptions
// before returning.
func (m *Manager) StopCapture() error {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()

	if sess == nil {
		return fmt.Errorf("no capture session running")
	}

	sess.Stop()

	if m.metrics != nil {
		m.metrics.RecordSessionStopped(time.Since(sess.StartedAt()).Seconds())
	}
	m.emitter.CaptureStopped(sess.ID())

	return nil
}

// ApplyTunables propagates hot-reloadable settings to the live session and
// retains the new configuration for future sessions. Structural settings
// (sample rate, frame size, queue sizes) only take effect on the next start.
func (m *Manager) ApplyTunables(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = cfg

	if m.current == nil || m.isFinishedLocked() {
		return
	}

	err := m.current.ApplyTunables(
		cfg.Detector.SpeechThreshold,
		cfg.Detector.PeakThreshold,
		cfg.Filter.SimilarityThreshold,
	)
	if err != nil {
		m.logger.Warn("failed to apply reloaded tunables to live session",
			slog.String("session_id", m.current.ID()),
			slog.String("error", err.Error()),
		)
		return
	}

	m.logger.Info("applied reloaded tunables to live session",
		slog.String("session_id", m.current.ID()),
		slog.Float64("speech_threshold", cfg.Detector.SpeechThreshold),
		slog.Float64("peak_threshold", cfg.Detector.PeakThreshold),
		slog.Float64("similarity_threshold", cfg.Filter.SimilarityThreshold),
	)
}

// Status returns a snapshot of the manager and any active session.
func (m *Manager) Status() ManagerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ManagerStatus{Running: false}
	}

	st := m.current.Status()
	return ManagerStatus{
		Running: !m.isFinishedLocked(),
		Session: &st,
	}
}

// Shutdown stops any active session. Used on process exit.
func (m *Manager) Shutdown() {
	if err := m.StopCapture(); err == nil {
		m.logger.Info("active session stopped during shutdown")
	}
}

// isFinishedLocked reports whether the current session's pipeline goroutine
// has already exited (source failure). Caller holds the lock.
func (m *Manager) isFinishedLocked() bool {
	select {
	case <-m.current.Done():
		return true
	default:
		return false
	}
}

// buildSessionLocked constructs a session from the retained configuration.
// Caller holds the lock.
func (m *Manager) buildSessionLocked() (*Session, error) {
	cfg := m.cfg

	source, err := m.sourceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create audio source: %w", err)
	}

	sampler, err := vad.NewSampler(cfg.Capture.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	detector, err := vad.NewDetector(vad.DetectorConfig{
		SpeechThreshold:       cfg.Detector.SpeechThreshold,
		PeakThreshold:         cfg.Detector.PeakThreshold,
		SilenceThreshold:      cfg.Detector.GetSilenceThreshold(),
		ShortSilenceThreshold: cfg.Detector.GetShortSilenceThreshold(),
		LongSpeechCutoff:      cfg.Detector.GetLongSpeechCutoff(),
		MinSpeechDuration:     cfg.Detector.GetMinSpeechDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	buffer := audio.NewSpanBuffer(cfg.Buffer.PreRollFrames, cfg.Buffer.MinFlushBytes)

	flt, err := filter.New(filter.Config{
		SimilarityThreshold: cfg.Filter.SimilarityThreshold,
		HistorySize:         cfg.Filter.HistorySize,
		MinChars:            cfg.Filter.MinChars,
		MinWords:            cfg.Filter.MinWords,
		Stoplist:            cfg.Filter.Stoplist,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filter: %w", err)
	}

	return New(
		Config{
			SampleRate:      cfg.Capture.SampleRate,
			MonitorInterval: cfg.Detector.GetMonitorInterval(),
			FlushInterval:   cfg.Buffer.GetFlushInterval(),
			MaxSpanWait:     cfg.Buffer.GetMaxSpanWait(),
			PeakFloor:       cfg.Encoder.PeakFloor,
			AverageFloor:    cfg.Encoder.AverageFloor,
		},
		Deps{
			Source:   source,
			Sampler:  sampler,
			Detector: detector,
			Buffer:   buffer,
			Filter:   flt,
			Provider: m.provider,
			DispatcherCfg: transcription.DispatcherConfig{
				QueueSize:      cfg.Dispatcher.QueueSize,
				Concurrency:    cfg.Dispatcher.Concurrency,
				MinInterval:    cfg.Dispatcher.GetMinInterval(),
				MinClipBytes:   cfg.Dispatcher.MinClipBytes,
				RequestTimeout: cfg.Transcription.GetTimeoutDuration(),
				Hints: transcription.Hints{
					Language: cfg.Transcription.Language,
					Model:    cfg.Transcription.Model,
					Prompt:   cfg.Transcription.Prompt,
				},
			},
			Emitter: m.emitter,
			Metrics: m.metrics,
			Logger:  m.logger,
		},
	)
}
