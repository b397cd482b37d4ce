// Package session runs the capture pipeline: frames from the audio source
// flow through energy sampling, boundary detection, and span buffering, and
// finished spans are encoded and handed to the transcription dispatcher.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
	"github.com/rahulrshetty45/CluelyClone/internal/capture"
	"github.com/rahulrshetty45/CluelyClone/internal/emit"
	"github.com/rahulrshetty45/CluelyClone/internal/filter"
	"github.com/rahulrshetty45/CluelyClone/internal/metrics"
	"github.com/rahulrshetty45/CluelyClone/internal/transcription"
	"github.com/rahulrshetty45/CluelyClone/internal/vad"
)

// Config holds the per-session pipeline parameters.
type Config struct {
	SampleRate      int
	MonitorInterval time.Duration
	FlushInterval   time.Duration
	MaxSpanWait     time.Duration
	// PeakFloor and AverageFloor gate encoded clips; a clip passing neither
	// floor is discarded as silent before submission.
	PeakFloor    float64
	AverageFloor float64
}

// Validate checks session configuration.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", c.MonitorInterval)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", c.FlushInterval)
	}
	if c.MaxSpanWait <= 0 {
		return fmt.Errorf("max span wait must be positive, got %s", c.MaxSpanWait)
	}
	return nil
}

// Deps are the components a session orchestrates. The session owns the
// dispatcher it builds around Provider; everything else is shared wiring.
type Deps struct {
	Source        capture.Source
	Sampler       *vad.Sampler
	Detector      *vad.Detector
	Buffer        *audio.SpanBuffer
	Filter        *filter.Filter
	Provider      transcription.Provider
	DispatcherCfg transcription.DispatcherConfig
	Emitter       emit.Emitter
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Session is one capture run. A single goroutine owns the pipeline: it
// multiplexes incoming frames, a monitor tick that drives the boundary
// detector, and a flush tick that bounds span latency. All pipeline state
// transitions happen on that goroutine, so components never race.
type Session struct {
	id         string
	cfg        Config
	source     capture.Source
	sampler    *vad.Sampler
	detector   *vad.Detector
	buffer     *audio.SpanBuffer
	filter     *filter.Filter
	dispatcher *transcription.Dispatcher
	emitter    emit.Emitter
	metrics    *metrics.Metrics
	logger     *slog.Logger

	frames    <-chan audio.Frame
	startedAt time.Time

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	srcOnce  sync.Once
	finOnce  sync.Once
	wg       sync.WaitGroup

	mu     sync.Mutex
	failed bool
}

// Status is a snapshot of a running session for the control API.
type Status struct {
	ID         string                        `json:"id"`
	StartedAt  time.Time                     `json:"started_at"`
	Speaking   bool                          `json:"speaking"`
	Sampler    vad.SamplerStats              `json:"sampler"`
	Detector   vad.DetectorStats             `json:"detector"`
	Buffer     audio.SpanBufferStats         `json:"buffer"`
	Dispatcher transcription.DispatcherStats `json:"dispatcher"`
	Filter     filter.Stats                  `json:"filter"`
}

// New creates a session. The transcription dispatcher is constructed here so
// its result callback feeds this session's filter and emitter.
func New(cfg Config, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Sampler == nil || deps.Detector == nil ||
		deps.Buffer == nil || deps.Filter == nil || deps.Provider == nil ||
		deps.Emitter == nil || deps.Logger == nil {
		return nil, fmt.Errorf("session dependencies incomplete")
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		source:   deps.Source,
		sampler:  deps.Sampler,
		detector: deps.Detector,
		buffer:   deps.Buffer,
		filter:   deps.Filter,
		emitter:  deps.Emitter,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	provider := deps.Provider
	if deps.Metrics != nil {
		provider = &instrumentedProvider{inner: deps.Provider, metrics: deps.Metrics}
	}

	dispatcher, err := transcription.NewDispatcher(provider, deps.DispatcherCfg, deps.Logger, s.handleResult)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	s.dispatcher = dispatcher

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start opens the audio source and launches the pipeline goroutine. A source
// start failure is fatal: it is returned immediately and never retried.
func (s *Session) Start(ctx context.Context) error {
	frames, err := s.source.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start audio source: %w", err)
	}

	s.frames = frames
	s.startedAt = time.Now()
	s.dispatcher.Start()

	s.wg.Add(1)
	go s.run()

	s.logger.Info("capture session started",
		slog.String("session_id", s.id),
		slog.Int("sample_rate", s.cfg.SampleRate),
	)

	return nil
}

// Stop shuts the session down: the pipeline goroutine exits, the source is
// released, any in-progress span is flushed and enqueued, and the dispatcher
// drains its pending queue before Stop returns. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()

	s.srcOnce.Do(func() {
		if err := s.source.Stop(); err != nil {
			s.logger.Warn("failed to stop audio source",
				slog.String("session_id", s.id),
				slog.String("error", err.Error()),
			)
		}
	})

	s.finalize()
}

// Done is closed when the pipeline goroutine has exited, whether by Stop or
// because the source failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Failed reports whether the session died because its source stopped
// delivering frames.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// ApplyTunables applies hot-reloadable thresholds to the live pipeline.
func (s *Session) ApplyTunables(speechThreshold, peakThreshold, similarityThreshold float64) error {
	if err := s.detector.UpdateThresholds(speechThreshold, peakThreshold); err != nil {
		return fmt.Errorf("failed to update detector thresholds: %w", err)
	}
	if err := s.filter.UpdateSimilarityThreshold(similarityThreshold); err != nil {
		return fmt.Errorf("failed to update filter threshold: %w", err)
	}
	return nil
}

// Status returns a snapshot of the session and its components.
func (s *Session) Status() Status {
	return Status{
		ID:         s.id,
		StartedAt:  s.startedAt,
		Speaking:   s.detector.Speaking(),
		Sampler:    s.sampler.GetStats(),
		Detector:   s.detector.GetStats(),
		Buffer:     s.buffer.GetStats(),
		Dispatcher: s.dispatcher.GetStats(),
		Filter:     s.filter.GetStats(),
	}
}

// run is the pipeline goroutine. Frames update the latest activity reading
// and accumulate in the buffer; the monitor tick feeds fresh readings through
// the boundary detector; the flush tick bounds how long an open span can
// accumulate before being split.
func (s *Session) run() {
	defer s.wg.Done()
	defer close(s.done)

	monitor := time.NewTicker(s.cfg.MonitorInterval)
	defer monitor.Stop()
	flush := time.NewTicker(s.cfg.FlushInterval)
	defer flush.Stop()

	var latest vad.ActivityReading
	var fresh bool

	for {
		select {
		case <-s.quit:
			return

		case f, ok := <-s.frames:
			if !ok {
				s.sourceDied()
				return
			}
			latest = s.sampler.Analyze(f)
			fresh = true
			if s.metrics != nil {
				s.metrics.RecordFrameSampled(latest.AverageEnergy)
			}
			s.buffer.Add(f)

		case <-monitor.C:
			if !fresh {
				continue
			}
			fresh = false
			for _, ev := range s.detector.Observe(latest) {
				s.handleEvent(ev)
			}

		case <-flush.C:
			if span, ok := s.buffer.FlushTimeout(s.cfg.MaxSpanWait, time.Now()); ok {
				s.dispatchSpan(span)
			}
			if s.metrics != nil {
				s.metrics.DispatchQueueSize.Set(float64(s.dispatcher.QueueDepth()))
			}
		}
	}
}

// handleEvent applies one boundary event to the span buffer.
func (s *Session) handleEvent(ev vad.Event) {
	switch ev.Kind {
	case vad.SpeechStarted:
		s.buffer.Open(ev.At)
		if s.metrics != nil {
			s.metrics.RecordSpanStarted()
		}
		s.logger.Debug("speech started", slog.String("session_id", s.id))

	case vad.SpeechEnded:
		if s.metrics != nil {
			s.metrics.RecordSpanEnded(ev.Actionable)
		}
		if !ev.Actionable {
			s.buffer.Discard()
			s.logger.Debug("speech span below minimum duration, discarded",
				slog.String("session_id", s.id),
				slog.Float64("duration", ev.Duration.Seconds()),
			)
			return
		}
		span, ok := s.buffer.FlushBoundary(ev.At)
		if !ok {
			if s.metrics != nil {
				s.metrics.RecordSpanDiscarded()
			}
			return
		}
		s.logger.Debug("speech ended",
			slog.String("session_id", s.id),
			slog.Float64("duration", ev.Duration.Seconds()),
		)
		s.dispatchSpan(span)
	}
}

// dispatchSpan encodes a flushed span and hands the clip to the dispatcher.
// Silent clips are discarded here; they registered on the spectral peak
// check but carry nothing worth a transcription call.
func (s *Session) dispatchSpan(span *audio.Span) {
	if s.metrics != nil {
		s.metrics.RecordFlush(string(span.Trigger), span.SizeBytes())
	}

	clip, err := audio.EncodeClip(span, s.cfg.SampleRate)
	if err != nil {
		s.logger.Warn("failed to encode span",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()),
		)
		return
	}

	if !audio.ValidateClipAudible(clip, s.cfg.PeakFloor, s.cfg.AverageFloor) {
		if s.metrics != nil {
			s.metrics.RecordClipDiscardedSilent()
		}
		s.logger.Debug("clip below audibility floors, discarded",
			slog.String("session_id", s.id),
			slog.String("clip_id", clip.ID),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordClipEncoded(clip.ApproxDuration.Seconds())
	}

	s.dispatcher.Enqueue(clip)
}

// handleResult receives recognized text from a dispatcher worker, runs it
// through the duplicate/noise filter, and emits accepted transcripts.
func (s *Session) handleResult(clip *audio.Clip, text string) {
	now := time.Now()
	res := s.filter.Check(text, now)
	if !res.Accepted {
		if s.metrics != nil {
			s.metrics.RecordTranscriptRejected(res.Reason)
		}
		s.logger.Debug("transcript rejected",
			slog.String("session_id", s.id),
			slog.String("clip_id", clip.ID),
			slog.String("reason", res.Reason),
			slog.Float64("similarity", res.Similarity),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordTranscriptAccepted()
	}
	s.logger.Info("transcript accepted",
		slog.String("session_id", s.id),
		slog.String("clip_id", clip.ID),
		slog.Int("text_len", len(text)),
	)
	s.emitter.TranscriptAccepted(text, now)
}

// sourceDied handles the frame channel closing without Stop being called.
// Capture errors are fatal to the session: surface immediately, no retry.
func (s *Session) sourceDied() {
	select {
	case <-s.quit:
		return
	default:
	}

	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()

	s.logger.Error("audio source stopped delivering frames",
		slog.String("session_id", s.id),
	)
	s.emitter.CaptureError(s.id, "audio capture stopped unexpectedly")
	s.finalize()
}

// finalize flushes any in-progress span and drains the dispatcher. Runs at
// most once per session.
func (s *Session) finalize() {
	s.finOnce.Do(func() {
		if span, ok := s.buffer.FlushShutdown(time.Now()); ok {
			s.dispatchSpan(span)
		}
		s.dispatcher.Stop()

		s.logger.Info("capture session finished",
			slog.String("session_id", s.id),
			slog.Float64("duration", time.Since(s.startedAt).Seconds()),
		)
	})
}

// instrumentedProvider records submission outcomes around the wrapped
// provider.
type instrumentedProvider struct {
	inner   transcription.Provider
	metrics *metrics.Metrics
}

func (p *instrumentedProvider) Transcribe(ctx context.Context, clip *audio.Clip, hints transcription.Hints) (string, error) {
	p.metrics.DispatchSubmitted.Inc()

	start := time.Now()
	text, err := p.inner.Transcribe(ctx, clip, hints)
	p.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		class := "transient"
		if transcription.IsFormatRejected(err) {
			class = "format"
		}
		p.metrics.DispatchFailed.WithLabelValues(class).Inc()
		return "", err
	}

	p.metrics.DispatchSucceeded.Inc()
	return text, nil
}
