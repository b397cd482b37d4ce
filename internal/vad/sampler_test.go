package vad

import (
	"math"
	"testing"
	"time"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
)

func sineFrame(frequency float64, sampleRate, numSamples int, amplitude float64, ts time.Time) audio.Frame {
	samples := make([]int16, numSamples)
	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(sampleRate)
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return audio.Frame{Samples: samples, SampleRate: sampleRate, Captured: ts}
}

func TestSamplerSilence(t *testing.T) {
	sampler, err := NewSampler(2048)
	if err != nil {
		t.Fatalf("NewSampler failed: %v", err)
	}

	frame := audio.Frame{Samples: make([]int16, 2048), SampleRate: 22050, Captured: time.Now()}
	reading := sampler.Analyze(frame)

	if reading.AverageEnergy > 0.001 {
		t.Errorf("Silent frame produced average energy %f", reading.AverageEnergy)
	}
	if reading.PeakEnergy > 0.001 {
		t.Errorf("Silent frame produced peak energy %f", reading.PeakEnergy)
	}
}

func TestSamplerLoudTone(t *testing.T) {
	sampler, err := NewSampler(2048)
	if err != nil {
		t.Fatalf("NewSampler failed: %v", err)
	}

	ts := time.Now()
	frame := sineFrame(440.0, 22050, 2048, 16000.0, ts)
	reading := sampler.Analyze(frame)

	if !reading.Timestamp.Equal(ts) {
		t.Error("Reading timestamp does not come from the frame")
	}

	// A 16000-amplitude sine has RMS ~ 16000/32768/sqrt(2) ~ 0.345
	if reading.AverageEnergy < 0.2 {
		t.Errorf("Loud tone produced average energy %f", reading.AverageEnergy)
	}

	// A pure tone concentrates in one spectral band; its bucketed peak
	// approaches the normalized amplitude and exceeds the RMS
	if reading.PeakEnergy < reading.AverageEnergy {
		t.Errorf("Spectral peak %f below RMS %f for a pure tone", reading.PeakEnergy, reading.AverageEnergy)
	}
	if reading.PeakEnergy > 1.0 {
		t.Errorf("Peak energy %f above 1.0", reading.PeakEnergy)
	}
}

func TestSamplerSizeMismatchFallback(t *testing.T) {
	sampler, err := NewSampler(2048)
	if err != nil {
		t.Fatalf("NewSampler failed: %v", err)
	}

	// Wrong-size frames fall back to RMS-only analysis instead of failing
	frame := sineFrame(440.0, 22050, 512, 16000.0, time.Now())
	reading := sampler.Analyze(frame)

	if reading.AverageEnergy <= 0 {
		t.Error("Fallback analysis produced zero energy for a loud frame")
	}
	if reading.PeakEnergy != reading.AverageEnergy {
		t.Errorf("Expected peak to mirror RMS on size mismatch, got peak=%f rms=%f",
			reading.PeakEnergy, reading.AverageEnergy)
	}
}

func TestNewSamplerInvalidFrameSize(t *testing.T) {
	if _, err := NewSampler(0); err == nil {
		t.Error("Expected error for zero frame size")
	}
	if _, err := NewSampler(-1); err == nil {
		t.Error("Expected error for negative frame size")
	}
}
