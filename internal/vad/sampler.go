package vad

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
)

// ActivityReading is one scalar loudness/activity measurement derived from a
// single frame. Readings are consumed by the boundary detector and not
// retained past its lookback.
type ActivityReading struct {
	Timestamp     time.Time
	AverageEnergy float64 // RMS over the frame, normalized to [0,1]
	PeakEnergy    float64 // peak bucketed spectral magnitude, normalized to [0,1]
}

// Sampler computes activity readings from PCM frames. AverageEnergy is the
// frame RMS; PeakEnergy comes from a bucketed magnitude spectrum, which
// catches transient onsets the RMS smooths away. Analyze never fails and a
// silent frame yields near-zero energy.
type Sampler struct {
	frameSize int
	buckets   int

	fft     *fourier.FFT
	scratch []float64
	coeffs  []complex128

	mu             sync.Mutex
	framesAnalyzed uint64
}

// SamplerStats is a snapshot of sampler activity.
type SamplerStats struct {
	FrameSize      int    `json:"frame_size"`
	Buckets        int    `json:"buckets"`
	FramesAnalyzed uint64 `json:"frames_analyzed_total"`
}

// spectralBuckets is the number of bands the magnitude spectrum is reduced
// to before taking the peak.
const spectralBuckets = 32

// NewSampler creates a sampler for fixed-size frames.
func NewSampler(frameSize int) (*Sampler, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}

	return &Sampler{
		frameSize: frameSize,
		buckets:   spectralBuckets,
		fft:       fourier.NewFFT(frameSize),
		scratch:   make([]float64, frameSize),
		coeffs:    make([]complex128, frameSize/2+1),
	}, nil
}

// Analyze computes the activity reading for one frame. Frames of an
// unexpected size fall back to RMS-only analysis (PeakEnergy mirrors
// AverageEnergy) instead of failing.
func (s *Sampler) Analyze(f audio.Frame) ActivityReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.framesAnalyzed++

	avg := rms(f.Samples)
	peak := avg
	if len(f.Samples) == s.frameSize {
		peak = s.spectralPeakLocked(f.Samples)
	}

	return ActivityReading{
		Timestamp:     f.Captured,
		AverageEnergy: avg,
		PeakEnergy:    peak,
	}
}

// GetStats returns a snapshot of sampler statistics.
func (s *Sampler) GetStats() SamplerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SamplerStats{
		FrameSize:      s.frameSize,
		Buckets:        s.buckets,
		FramesAnalyzed: s.framesAnalyzed,
	}
}

// spectralPeakLocked computes the peak bucketed spectrum magnitude for a
// full frame. Caller holds the lock; scratch buffers are reused across calls.
func (s *Sampler) spectralPeakLocked(samples []int16) float64 {
	for i, v := range samples {
		s.scratch[i] = float64(v) / 32768.0
	}

	coeffs := s.fft.Coefficients(s.coeffs, s.scratch)

	// Reduce bins to bands and keep each band's strongest magnitude. The
	// factor 2/N scales a full-amplitude sinusoid to ~1.0.
	scale := 2.0 / float64(s.frameSize)
	bandWidth := (len(coeffs) + s.buckets - 1) / s.buckets

	var peak float64
	for start := 0; start < len(coeffs); start += bandWidth {
		end := start + bandWidth
		if end > len(coeffs) {
			end = len(coeffs)
		}
		var bandPeak float64
		for i := start; i < end; i++ {
			if m := cmplx.Abs(coeffs[i]) * scale; m > bandPeak {
				bandPeak = m
			}
		}
		if bandPeak > peak {
			peak = bandPeak
		}
	}

	if peak > 1 {
		peak = 1
	}
	return peak
}

// rms computes the normalized root-mean-square energy of a sample window.
func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, v := range samples {
		f := float64(v)
		sum += f * f
	}

	energy := math.Sqrt(sum/float64(len(samples))) / 32768.0
	if energy > 1 {
		energy = 1
	}
	return energy
}
