package audio

import "time"

// Frame is one fixed-size window of mono PCM-16 samples from the capture
// source. Frames are immutable once produced; the pipeline never mutates
// Samples after construction.
type Frame struct {
	Samples    []int16
	SampleRate int
	Captured   time.Time
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// SizeBytes returns the raw PCM size of the frame (2 bytes per sample).
func (f Frame) SizeBytes() int {
	return len(f.Samples) * 2
}
