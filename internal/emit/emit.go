// Package emit publishes accepted transcripts and session lifecycle events
// to the display component.
package emit

import "time"

// Emitter receives pipeline outputs. Implementations must not block the
// caller for long; emission happens on pipeline goroutines.
type Emitter interface {
	// TranscriptAccepted fires once per filter-accepted transcript.
	TranscriptAccepted(text string, receivedAt time.Time)
	// CaptureStarted fires when a capture session begins.
	CaptureStarted(sessionID string)
	// CaptureStopped fires when a capture session ends.
	CaptureStopped(sessionID string)
	// CaptureError fires when a session fails to start or dies; message is
	// user-visible.
	CaptureError(sessionID, message string)
}

// Nop is an Emitter that discards everything. Useful in tests.
type Nop struct{}

func (Nop) TranscriptAccepted(string, time.Time) {}
func (Nop) CaptureStarted(string)                {}
func (Nop) CaptureStopped(string)                {}
func (Nop) CaptureError(string, string)          {}

// Multi fans out to several emitters in order.
type Multi []Emitter

func (m Multi) TranscriptAccepted(text string, receivedAt time.Time) {
	for _, e := range m {
		e.TranscriptAccepted(text, receivedAt)
	}
}

func (m Multi) CaptureStarted(sessionID string) {
	for _, e := range m {
		e.CaptureStarted(sessionID)
	}
}

func (m Multi) CaptureStopped(sessionID string) {
	for _, e := range m {
		e.CaptureStopped(sessionID)
	}
}

func (m Multi) CaptureError(sessionID, message string) {
	for _, e := range m {
		e.CaptureError(sessionID, message)
	}
}
