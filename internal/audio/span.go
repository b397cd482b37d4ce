package audio

import (
	"sync"
	"time"
)

// FlushTrigger identifies which policy finalized a span.
type FlushTrigger string

const (
	TriggerBoundary FlushTrigger = "boundary"
	TriggerTimeout  FlushTrigger = "timeout"
	TriggerShutdown FlushTrigger = "shutdown"
)

// Span is a finished interval of detected speech: the exact ordered frame
// sequence captured between onset and offset. A span is handed off exactly
// once by the buffer and owned exclusively by its receiver afterwards.
type Span struct {
	StartTime    time.Time
	LastActivity time.Time
	Frames       []Frame
	Trigger      FlushTrigger
}

// Samples concatenates the span's frames, in capture order, into one
// contiguous sample sequence.
func (s *Span) Samples() []int16 {
	total := 0
	for _, f := range s.Frames {
		total += len(f.Samples)
	}
	out := make([]int16, 0, total)
	for _, f := range s.Frames {
		out = append(out, f.Samples...)
	}
	return out
}

// SizeBytes returns the raw PCM size of the span.
func (s *Span) SizeBytes() int {
	total := 0
	for _, f := range s.Frames {
		total += f.SizeBytes()
	}
	return total
}

// Duration returns the sample-based playback duration of the span.
func (s *Span) Duration() time.Duration {
	var d time.Duration
	for _, f := range s.Frames {
		d += f.Duration()
	}
	return d
}

// SpanBuffer accumulates raw frames for the speech span currently in
// progress. It keeps a small pre-roll of recent frames while idle so the
// frame containing the onset is included when a span opens, and it exposes
// exactly one mutually-exclusive flush operation: swapping the accumulated
// frames out under the lock. Boundary and timeout flushes both go through
// that swap, so they can never hand the same frame to two spans.
//
// Raw samples are accumulated here and encoded exactly once per flush.
// Encoded clips are never concatenated.
type SpanBuffer struct {
	preRollSize   int
	minFlushBytes int

	mu        sync.Mutex
	preRoll   []Frame
	open      bool
	openedAt  time.Time
	startTime time.Time
	lastFrame time.Time
	frames    []Frame
	sizeBytes int

	// statistics
	framesBuffered  uint64
	spansFlushed    uint64
	spansDiscarded  uint64
	timeoutFlushes  uint64
	boundaryFlushes uint64
}

// SpanBufferStats is a snapshot of buffer activity for monitoring.
type SpanBufferStats struct {
	Open            bool   `json:"open"`
	BufferedFrames  int    `json:"buffered_frames"`
	BufferedBytes   int    `json:"buffered_bytes"`
	FramesBuffered  uint64 `json:"frames_buffered_total"`
	SpansFlushed    uint64 `json:"spans_flushed_total"`
	SpansDiscarded  uint64 `json:"spans_discarded_total"`
	BoundaryFlushes uint64 `json:"boundary_flushes_total"`
	TimeoutFlushes  uint64 `json:"timeout_flushes_total"`
}

// NewSpanBuffer creates a span buffer. preRollFrames is the number of most
// recent idle frames carried into a newly opened span; minFlushBytes is the
// floor under which a boundary flush discards the span instead of emitting it.
func NewSpanBuffer(preRollFrames, minFlushBytes int) *SpanBuffer {
	if preRollFrames < 0 {
		preRollFrames = 0
	}
	return &SpanBuffer{
		preRollSize:   preRollFrames,
		minFlushBytes: minFlushBytes,
		preRoll:       make([]Frame, 0, preRollFrames),
	}
}

// Add routes a frame into the buffer. While a span is open the frame is
// appended to it; otherwise the frame only refreshes the pre-roll ring.
func (b *SpanBuffer) Add(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		if b.preRollSize == 0 {
			return
		}
		if len(b.preRoll) == b.preRollSize {
			copy(b.preRoll, b.preRoll[1:])
			b.preRoll = b.preRoll[:len(b.preRoll)-1]
		}
		b.preRoll = append(b.preRoll, f)
		return
	}

	b.frames = append(b.frames, f)
	b.sizeBytes += f.SizeBytes()
	b.lastFrame = f.Captured
	b.framesBuffered++
}

// Open starts a new span at the given onset time, seeding it with the
// pre-roll frames. Calling Open while a span is already open is a no-op, so
// a timeout flush that leaves the span open stays consistent with later
// detector state.
func (b *SpanBuffer) Open(start time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return
	}

	b.open = true
	b.openedAt = start
	b.startTime = start
	b.lastFrame = start
	b.frames = make([]Frame, len(b.preRoll))
	copy(b.frames, b.preRoll)
	for _, f := range b.frames {
		b.sizeBytes += f.SizeBytes()
	}
	b.framesBuffered += uint64(len(b.frames))
	b.preRoll = b.preRoll[:0]
}

// IsOpen reports whether a span is currently accumulating frames.
func (b *SpanBuffer) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// FlushBoundary finalizes the open span at a detected speech offset. It
// returns (nil, false) when no span is open or the accumulated size is below
// the flush floor; undersized spans are discarded, not emitted.
func (b *SpanBuffer) FlushBoundary(offset time.Time) (*Span, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil, false
	}

	if b.sizeBytes < b.minFlushBytes {
		b.resetLocked(false)
		b.spansDiscarded++
		return nil, false
	}

	span := b.takeLocked(TriggerBoundary, offset)
	b.resetLocked(false)
	b.boundaryFlushes++
	b.spansFlushed++
	return span, true
}

// FlushTimeout finalizes the open span when it has been accumulating longer
// than maxWait, bounding latency and memory during abnormally long
// continuous speech. The span stays open afterwards so ongoing speech keeps
// capturing into a fresh accumulation.
func (b *SpanBuffer) FlushTimeout(maxWait time.Duration, now time.Time) (*Span, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open || now.Sub(b.openedAt) < maxWait {
		return nil, false
	}
	if b.sizeBytes < b.minFlushBytes {
		// Not enough audio yet; restart the wait window instead of emitting
		// a near-empty clip.
		b.openedAt = now
		return nil, false
	}

	span := b.takeLocked(TriggerTimeout, now)
	b.resetLocked(true)
	b.openedAt = now
	b.startTime = now
	b.timeoutFlushes++
	b.spansFlushed++
	return span, true
}

// FlushShutdown finalizes any non-empty in-progress span during session
// shutdown, regardless of the flush floor timing. Returns (nil, false) when
// nothing is buffered or the span is below the flush floor.
func (b *SpanBuffer) FlushShutdown(now time.Time) (*Span, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil, false
	}
	if b.sizeBytes < b.minFlushBytes {
		b.resetLocked(false)
		b.spansDiscarded++
		return nil, false
	}

	span := b.takeLocked(TriggerShutdown, now)
	b.resetLocked(false)
	b.spansFlushed++
	return span, true
}

// Discard drops the open span without emitting it. Used when the detector
// reports an offset below the minimum speech duration.
func (b *SpanBuffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return
	}
	b.resetLocked(false)
	b.spansDiscarded++
}

// GetStats returns a snapshot of buffer statistics.
func (b *SpanBuffer) GetStats() SpanBufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return SpanBufferStats{
		Open:            b.open,
		BufferedFrames:  len(b.frames),
		BufferedBytes:   b.sizeBytes,
		FramesBuffered:  b.framesBuffered,
		SpansFlushed:    b.spansFlushed,
		SpansDiscarded:  b.spansDiscarded,
		BoundaryFlushes: b.boundaryFlushes,
		TimeoutFlushes:  b.timeoutFlushes,
	}
}

// takeLocked hands the accumulated frames off as a span. Caller holds the lock.
func (b *SpanBuffer) takeLocked(trigger FlushTrigger, end time.Time) *Span {
	last := b.lastFrame
	if last.IsZero() {
		last = end
	}
	return &Span{
		StartTime:    b.startTime,
		LastActivity: last,
		Frames:       b.frames,
		Trigger:      trigger,
	}
}

// resetLocked clears accumulation state. keepOpen preserves the open flag
// for timeout flushes that split long continuous speech. Caller holds the lock.
func (b *SpanBuffer) resetLocked(keepOpen bool) {
	b.frames = nil
	b.sizeBytes = 0
	if !keepOpen {
		b.open = false
		b.openedAt = time.Time{}
		b.startTime = time.Time{}
		b.lastFrame = time.Time{}
	}
}
