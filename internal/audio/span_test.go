package audio

import (
	"testing"
	"time"
)

// testFrame builds a frame of n constant samples captured at ts.
func testFrame(n int, value int16, ts time.Time) Frame {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = value
	}
	return Frame{Samples: samples, SampleRate: 22050, Captured: ts}
}

func TestSpanBufferBoundaryFlush(t *testing.T) {
	buf := NewSpanBuffer(0, 0)
	base := time.Now()

	buf.Open(base)
	buf.Add(testFrame(1024, 1000, base.Add(50*time.Millisecond)))
	buf.Add(testFrame(1024, 2000, base.Add(100*time.Millisecond)))

	span, ok := buf.FlushBoundary(base.Add(200 * time.Millisecond))
	if !ok {
		t.Fatal("Expected boundary flush to produce a span")
	}

	if len(span.Frames) != 2 {
		t.Errorf("Expected 2 frames in span, got %d", len(span.Frames))
	}
	if span.Trigger != TriggerBoundary {
		t.Errorf("Expected trigger %q, got %q", TriggerBoundary, span.Trigger)
	}
	if span.SizeBytes() != 2*1024*2 {
		t.Errorf("Expected %d bytes, got %d", 2*1024*2, span.SizeBytes())
	}

	// Buffer must be closed and empty after a boundary flush
	if buf.IsOpen() {
		t.Error("Buffer still open after boundary flush")
	}
	if _, ok := buf.FlushBoundary(base.Add(300 * time.Millisecond)); ok {
		t.Error("Second boundary flush produced a span from an empty buffer")
	}
}

func TestSpanBufferFrameOrder(t *testing.T) {
	buf := NewSpanBuffer(0, 0)
	base := time.Now()

	buf.Open(base)
	for i := 0; i < 5; i++ {
		buf.Add(testFrame(4, int16(i), base.Add(time.Duration(i)*time.Millisecond)))
	}

	span, ok := buf.FlushBoundary(base.Add(time.Second))
	if !ok {
		t.Fatal("Expected a span")
	}

	samples := span.Samples()
	for i := 0; i < 5; i++ {
		if samples[i*4] != int16(i) {
			t.Errorf("Frame %d out of order: got sample %d", i, samples[i*4])
		}
	}
}

func TestSpanBufferPreRoll(t *testing.T) {
	buf := NewSpanBuffer(1, 0)
	base := time.Now()

	// Frames arriving while closed refresh the pre-roll ring
	buf.Add(testFrame(4, 11, base))
	buf.Add(testFrame(4, 22, base.Add(time.Millisecond)))

	buf.Open(base.Add(2 * time.Millisecond))
	buf.Add(testFrame(4, 33, base.Add(3*time.Millisecond)))

	span, ok := buf.FlushBoundary(base.Add(time.Second))
	if !ok {
		t.Fatal("Expected a span")
	}

	// Only the most recent pre-roll frame is carried in
	if len(span.Frames) != 2 {
		t.Fatalf("Expected 2 frames (pre-roll + appended), got %d", len(span.Frames))
	}
	if span.Frames[0].Samples[0] != 22 {
		t.Errorf("Expected pre-roll frame with sample 22 first, got %d", span.Frames[0].Samples[0])
	}
	if span.Frames[1].Samples[0] != 33 {
		t.Errorf("Expected appended frame with sample 33 second, got %d", span.Frames[1].Samples[0])
	}
}

func TestSpanBufferIdleFramesNotAccumulated(t *testing.T) {
	buf := NewSpanBuffer(1, 0)
	base := time.Now()

	// Long idle stretch; memory must stay bounded by the pre-roll size
	for i := 0; i < 1000; i++ {
		buf.Add(testFrame(4, int16(i), base.Add(time.Duration(i)*time.Millisecond)))
	}

	stats := buf.GetStats()
	if stats.BufferedFrames != 0 {
		t.Errorf("Expected 0 buffered frames while closed, got %d", stats.BufferedFrames)
	}
}

func TestSpanBufferMinFlushBytes(t *testing.T) {
	buf := NewSpanBuffer(0, 1000)
	base := time.Now()

	buf.Open(base)
	buf.Add(testFrame(10, 500, base)) // 20 bytes, below the floor

	if _, ok := buf.FlushBoundary(base.Add(time.Second)); ok {
		t.Error("Undersized span was emitted instead of discarded")
	}
	if buf.IsOpen() {
		t.Error("Buffer still open after discarding an undersized span")
	}

	stats := buf.GetStats()
	if stats.SpansDiscarded != 1 {
		t.Errorf("Expected 1 discarded span, got %d", stats.SpansDiscarded)
	}
}

func TestSpanBufferTimeoutFlush(t *testing.T) {
	buf := NewSpanBuffer(0, 0)
	base := time.Now()

	buf.Open(base)
	buf.Add(testFrame(1024, 1000, base.Add(time.Second)))

	// Not past maxWait yet
	if _, ok := buf.FlushTimeout(10*time.Second, base.Add(5*time.Second)); ok {
		t.Error("Timeout flush fired before maxWait elapsed")
	}

	span, ok := buf.FlushTimeout(10*time.Second, base.Add(11*time.Second))
	if !ok {
		t.Fatal("Expected timeout flush to produce a span")
	}
	if span.Trigger != TriggerTimeout {
		t.Errorf("Expected trigger %q, got %q", TriggerTimeout, span.Trigger)
	}

	// The span stays open after a timeout flush so ongoing speech keeps
	// capturing, and the wait window restarts.
	if !buf.IsOpen() {
		t.Error("Buffer closed after timeout flush")
	}
	if _, ok := buf.FlushTimeout(10*time.Second, base.Add(12*time.Second)); ok {
		t.Error("Timeout flush fired again without a fresh maxWait elapsing")
	}

	// Frames added after the flush belong to the new accumulation only
	buf.Add(testFrame(1024, 7, base.Add(12*time.Second)))
	next, ok := buf.FlushBoundary(base.Add(13 * time.Second))
	if !ok {
		t.Fatal("Expected boundary flush after timeout flush")
	}
	if len(next.Frames) != 1 || next.Frames[0].Samples[0] != 7 {
		t.Error("Frames from before the timeout flush leaked into the next span")
	}
}

func TestSpanBufferShutdownFlush(t *testing.T) {
	buf := NewSpanBuffer(0, 0)
	base := time.Now()

	buf.Open(base)
	buf.Add(testFrame(1024, 1000, base))

	span, ok := buf.FlushShutdown(base.Add(time.Second))
	if !ok {
		t.Fatal("Expected shutdown flush to produce a span")
	}
	if span.Trigger != TriggerShutdown {
		t.Errorf("Expected trigger %q, got %q", TriggerShutdown, span.Trigger)
	}
	if buf.IsOpen() {
		t.Error("Buffer still open after shutdown flush")
	}
}

func TestSpanBufferDiscard(t *testing.T) {
	buf := NewSpanBuffer(0, 0)
	base := time.Now()

	buf.Open(base)
	buf.Add(testFrame(1024, 1000, base))
	buf.Discard()

	if buf.IsOpen() {
		t.Error("Buffer still open after discard")
	}
	if _, ok := buf.FlushBoundary(base.Add(time.Second)); ok {
		t.Error("Flush after discard produced a span")
	}
}

func TestSpanBufferOpenIdempotent(t *testing.T) {
	buf := NewSpanBuffer(0, 0)
	base := time.Now()

	buf.Open(base)
	buf.Add(testFrame(4, 1, base))
	buf.Open(base.Add(time.Second)) // no-op, span already open
	buf.Add(testFrame(4, 2, base.Add(time.Second)))

	span, ok := buf.FlushBoundary(base.Add(2 * time.Second))
	if !ok {
		t.Fatal("Expected a span")
	}
	if len(span.Frames) != 2 {
		t.Errorf("Expected 2 frames, got %d", len(span.Frames))
	}
	if !span.StartTime.Equal(base) {
		t.Errorf("Second Open changed the span start time: %v", span.StartTime)
	}
}
