package vad

import (
	"fmt"
	"sync"
	"time"
)

// EventKind identifies a boundary detector event.
type EventKind int

const (
	// SpeechStarted marks the onset of a speech span.
	SpeechStarted EventKind = iota
	// SpeechEnded marks the offset of a speech span.
	SpeechEnded
)

// Event is a speech boundary crossing. For SpeechEnded, Duration is the
// measured speech span and Actionable reports whether it met the minimum
// speech duration; shorter spans are noise and must not reach the buffer as
// a boundary flush.
type Event struct {
	Kind       EventKind
	At         time.Time
	Duration   time.Duration
	Actionable bool
}

// DetectorConfig holds the boundary detector tunables.
type DetectorConfig struct {
	// SpeechThreshold is the RMS level that opens a span.
	SpeechThreshold float64
	// PeakThreshold is the higher spectral-peak level that also opens a
	// span, catching transient onsets the RMS misses.
	PeakThreshold float64
	// SilenceThreshold is the default silence window that closes a span.
	SilenceThreshold time.Duration
	// ShortSilenceThreshold replaces SilenceThreshold once accumulated
	// speech exceeds LongSpeechCutoff, ending long utterances faster.
	ShortSilenceThreshold time.Duration
	// LongSpeechCutoff is the accumulated speech duration past which the
	// short silence window applies.
	LongSpeechCutoff time.Duration
	// MinSpeechDuration is the floor under which an ended span is not
	// actionable.
	MinSpeechDuration time.Duration
}

// Validate checks the detector configuration.
func (c DetectorConfig) Validate() error {
	if c.SpeechThreshold <= 0 || c.SpeechThreshold > 1 {
		return fmt.Errorf("speech threshold must be in (0,1], got %f", c.SpeechThreshold)
	}
	if c.PeakThreshold < c.SpeechThreshold || c.PeakThreshold > 1 {
		return fmt.Errorf("peak threshold must be in [speech threshold,1], got %f", c.PeakThreshold)
	}
	if c.SilenceThreshold <= 0 {
		return fmt.Errorf("silence threshold must be positive, got %s", c.SilenceThreshold)
	}
	if c.ShortSilenceThreshold <= 0 || c.ShortSilenceThreshold > c.SilenceThreshold*10 {
		return fmt.Errorf("short silence threshold out of range: %s", c.ShortSilenceThreshold)
	}
	if c.LongSpeechCutoff <= 0 {
		return fmt.Errorf("long speech cutoff must be positive, got %s", c.LongSpeechCutoff)
	}
	if c.MinSpeechDuration < 0 {
		return fmt.Errorf("min speech duration cannot be negative, got %s", c.MinSpeechDuration)
	}
	return nil
}

// Detector is the speech boundary state machine: Idle and Speaking, with
// hysteresis between onset and offset conditions. Time comes exclusively
// from reading timestamps, never from the wall clock, so correctness depends
// only on relative event ordering.
type Detector struct {
	mu  sync.Mutex
	cfg DetectorConfig

	speaking     bool
	startTime    time.Time
	lastActivity time.Time

	// statistics
	readings        uint64
	spansStarted    uint64
	spansEnded      uint64
	spansActionable uint64
}

// DetectorStats is a snapshot of detector activity for monitoring.
type DetectorStats struct {
	Speaking        bool    `json:"speaking"`
	Readings        uint64  `json:"readings_total"`
	SpansStarted    uint64  `json:"spans_started_total"`
	SpansEnded      uint64  `json:"spans_ended_total"`
	SpansActionable uint64  `json:"spans_actionable_total"`
	SpeechThreshold float64 `json:"speech_threshold"`
	PeakThreshold   float64 `json:"peak_threshold"`
}

// NewDetector creates a boundary detector.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Observe feeds one activity reading through the state machine and returns
// the boundary events it produced (at most one). Readings must arrive in
// timestamp order.
func (d *Detector) Observe(r ActivityReading) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.readings++

	active := r.AverageEnergy > d.cfg.SpeechThreshold || r.PeakEnergy > d.cfg.PeakThreshold

	if !d.speaking {
		if !active {
			return nil
		}
		d.speaking = true
		d.startTime = r.Timestamp
		d.lastActivity = r.Timestamp
		d.spansStarted++
		return []Event{{Kind: SpeechStarted, At: r.Timestamp}}
	}

	if active {
		d.lastActivity = r.Timestamp
		return nil
	}

	window := d.cfg.SilenceThreshold
	if d.lastActivity.Sub(d.startTime) >= d.cfg.LongSpeechCutoff {
		window = d.cfg.ShortSilenceThreshold
	}

	if r.Timestamp.Sub(d.lastActivity) <= window {
		return nil
	}

	duration := d.lastActivity.Sub(d.startTime)
	d.speaking = false
	d.spansEnded++

	actionable := duration >= d.cfg.MinSpeechDuration
	if actionable {
		d.spansActionable++
	}

	return []Event{{
		Kind:       SpeechEnded,
		At:         r.Timestamp,
		Duration:   duration,
		Actionable: actionable,
	}}
}

// Speaking reports whether a span is currently open.
func (d *Detector) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// UpdateThresholds applies new onset thresholds, used by config hot reload.
func (d *Detector) UpdateThresholds(speech, peak float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.cfg
	next.SpeechThreshold = speech
	next.PeakThreshold = peak
	if err := next.Validate(); err != nil {
		return err
	}
	d.cfg = next
	return nil
}

// Reset returns the detector to Idle, dropping any open span.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.speaking = false
	d.startTime = time.Time{}
	d.lastActivity = time.Time{}
}

// GetStats returns a snapshot of detector statistics.
func (d *Detector) GetStats() DetectorStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DetectorStats{
		Speaking:        d.speaking,
		Readings:        d.readings,
		SpansStarted:    d.spansStarted,
		SpansEnded:      d.spansEnded,
		SpansActionable: d.spansActionable,
		SpeechThreshold: d.cfg.SpeechThreshold,
		PeakThreshold:   d.cfg.PeakThreshold,
	}
}
