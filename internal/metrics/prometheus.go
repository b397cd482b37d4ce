// Package metrics exposes Prometheus instrumentation for the capture
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the capture service.
type Metrics struct {
	// Sampling metrics
	FramesSampled prometheus.Counter
	FrameEnergy   prometheus.Histogram

	// Boundary detector metrics
	SpansStarted        prometheus.Counter
	SpansEnded          prometheus.Counter
	SpansDiscardedShort prometheus.Counter

	// Buffer metrics
	Flushes        *prometheus.CounterVec
	FlushedBytes   prometheus.Histogram
	SpansDiscarded prometheus.Counter

	// Encoder metrics
	ClipsEncoded         prometheus.Counter
	ClipsDiscardedSilent prometheus.Counter
	ClipDuration         prometheus.Histogram

	// Dispatch metrics
	DispatchSubmitted     prometheus.Counter
	DispatchSucceeded     prometheus.Counter
	DispatchFailed        *prometheus.CounterVec
	DispatchQueueSize     prometheus.Gauge
	TranscriptionDuration prometheus.Histogram

	// Filter metrics
	TranscriptsAccepted prometheus.Counter
	TranscriptsRejected *prometheus.CounterVec

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsStopped prometheus.Counter
	SessionActive   prometheus.Gauge
	SessionDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		FramesSampled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_frames_sampled_total",
			Help: "Total number of audio frames analyzed by the energy sampler",
		}),
		FrameEnergy: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_frame_energy",
			Help:    "RMS energy of analyzed frames",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 0.001 to ~0.5
		}),

		SpansStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_speech_spans_started_total",
			Help: "Total number of speech onsets detected",
		}),
		SpansEnded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_speech_spans_ended_total",
			Help: "Total number of speech offsets detected",
		}),
		SpansDiscardedShort: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_speech_spans_discarded_short_total",
			Help: "Spans discarded for falling under the minimum speech duration",
		}),

		Flushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_buffer_flushes_total",
			Help: "Buffer flushes by trigger",
		}, []string{"trigger"}),
		FlushedBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_buffer_flushed_bytes",
			Help:    "Raw PCM bytes per flushed span",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		SpansDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_buffer_spans_discarded_total",
			Help: "Spans discarded below the flush byte floor",
		}),

		ClipsEncoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_clips_encoded_total",
			Help: "Total number of clips encoded",
		}),
		ClipsDiscardedSilent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_clips_discarded_silent_total",
			Help: "Encoded clips discarded by the post-encode amplitude check",
		}),
		ClipDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_clip_duration_seconds",
			Help:    "Approximate duration of encoded clips",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~1 minute
		}),

		DispatchSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_dispatch_submitted_total",
			Help: "Transcription submissions attempted",
		}),
		DispatchSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_dispatch_succeeded_total",
			Help: "Transcription submissions that returned text",
		}),
		DispatchFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_dispatch_failed_total",
			Help: "Transcription submissions that failed, by class",
		}, []string{"class"}),
		DispatchQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "capture_dispatch_queue_size",
			Help: "Current number of clips waiting for submission",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		TranscriptsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_transcripts_accepted_total",
			Help: "Transcripts accepted by the duplicate/noise filter",
		}),
		TranscriptsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_transcripts_rejected_total",
			Help: "Transcripts rejected by the duplicate/noise filter, by reason",
		}, []string{"reason"}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_sessions_started_total",
			Help: "Capture sessions started",
		}),
		SessionsStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_sessions_stopped_total",
			Help: "Capture sessions stopped",
		}),
		SessionActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "capture_session_active",
			Help: "Whether a capture session is currently active",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_session_duration_seconds",
			Help:    "Duration of capture sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
	}
}

// RecordFrameSampled records one analyzed frame and its RMS energy.
func (m *Metrics) RecordFrameSampled(energy float64) {
	m.FramesSampled.Inc()
	m.FrameEnergy.Observe(energy)
}

// RecordSpanStarted increments the spans started counter.
func (m *Metrics) RecordSpanStarted() {
	m.SpansStarted.Inc()
}

// RecordSpanEnded records a span offset; short spans count as discarded.
func (m *Metrics) RecordSpanEnded(actionable bool) {
	m.SpansEnded.Inc()
	if !actionable {
		m.SpansDiscardedShort.Inc()
	}
}

// RecordFlush records one buffer flush with its trigger and size.
func (m *Metrics) RecordFlush(trigger string, sizeBytes int) {
	m.Flushes.WithLabelValues(trigger).Inc()
	m.FlushedBytes.Observe(float64(sizeBytes))
}

// RecordSpanDiscarded increments the undersized-span counter.
func (m *Metrics) RecordSpanDiscarded() {
	m.SpansDiscarded.Inc()
}

// RecordClipEncoded records one encoded clip.
func (m *Metrics) RecordClipEncoded(durationSeconds float64) {
	m.ClipsEncoded.Inc()
	m.ClipDuration.Observe(durationSeconds)
}

// RecordClipDiscardedSilent increments the silent-clip counter.
func (m *Metrics) RecordClipDiscardedSilent() {
	m.ClipsDiscardedSilent.Inc()
}

// RecordTranscriptAccepted increments the accepted transcript counter.
func (m *Metrics) RecordTranscriptAccepted() {
	m.TranscriptsAccepted.Inc()
}

// RecordTranscriptRejected increments the rejected counter for a reason.
func (m *Metrics) RecordTranscriptRejected(reason string) {
	m.TranscriptsRejected.WithLabelValues(reason).Inc()
}

// RecordSessionStarted marks a session start.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionActive.Set(1)
}

// RecordSessionStopped marks a session stop with its duration.
func (m *Metrics) RecordSessionStopped(durationSeconds float64) {
	m.SessionsStopped.Inc()
	m.SessionActive.Set(0)
	m.SessionDuration.Observe(durationSeconds)
}
