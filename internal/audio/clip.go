package audio

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clip is one self-contained encoded audio object ready for transcription.
// Immutable once produced; created by EncodeClip, consumed exactly once by
// the dispatcher, then discarded.
type Clip struct {
	ID             string        `json:"id"`
	Bytes          []byte        `json:"-"`
	MIME           string        `json:"mime"`
	ApproxDuration time.Duration `json:"approx_duration"`
	SizeBytes      int           `json:"size_bytes"`
	Trigger        FlushTrigger  `json:"trigger"`
	EncodedAt      time.Time     `json:"encoded_at"`
}

// EncodeClip converts a flushed span into a single WAV clip. Encoding
// happens exactly once per flush; the clip decodes independently of any
// other clip.
func EncodeClip(span *Span, sampleRate int) (*Clip, error) {
	if span == nil || len(span.Frames) == 0 {
		return nil, fmt.Errorf("cannot encode empty span")
	}

	samples := span.Samples()
	data, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode span: %w", err)
	}

	return &Clip{
		ID:             uuid.NewString(),
		Bytes:          data,
		MIME:           "audio/wav",
		ApproxDuration: time.Duration(len(samples)) * time.Second / time.Duration(sampleRate),
		SizeBytes:      len(data),
		Trigger:        span.Trigger,
		EncodedAt:      time.Now(),
	}, nil
}

// ValidateClipAudible checks the encoded payload directly, skipping the
// header bytes, and reports whether the clip carries audible content. A clip
// is rejected only when BOTH its normalized peak and average amplitude fall
// under the given floors; such clips registered as speech on the spectral
// peak check but contain nothing worth a transcription call.
func ValidateClipAudible(clip *Clip, peakFloor, avgFloor float64) bool {
	payload, err := wavPayload(clip.Bytes)
	if err != nil || len(payload) < 2 {
		return false
	}

	var peak, sum float64
	n := len(payload) / 2
	for i := 0; i < n; i++ {
		s := int16(payload[i*2]) | int16(payload[i*2+1])<<8
		abs := float64(s)
		if abs < 0 {
			abs = -abs
		}
		abs /= 32768.0
		if abs > peak {
			peak = abs
		}
		sum += abs
	}
	avg := sum / float64(n)

	return peak >= peakFloor || avg >= avgFloor
}
