package audio

import (
	"testing"
	"time"
)

func spanFromSamples(samples []int16) *Span {
	now := time.Now()
	return &Span{
		StartTime:    now,
		LastActivity: now,
		Frames:       []Frame{{Samples: samples, SampleRate: 22050, Captured: now}},
		Trigger:      TriggerBoundary,
	}
}

func TestEncodeClip(t *testing.T) {
	samples := sineWave(440.0, 22050, 22050, 12000.0) // one second
	clip, err := EncodeClip(spanFromSamples(samples), 22050)
	if err != nil {
		t.Fatalf("EncodeClip failed: %v", err)
	}

	if clip.ID == "" {
		t.Error("Clip has no ID")
	}
	if clip.MIME != "audio/wav" {
		t.Errorf("Expected MIME audio/wav, got %s", clip.MIME)
	}
	if clip.SizeBytes != len(clip.Bytes) {
		t.Errorf("SizeBytes %d does not match payload length %d", clip.SizeBytes, len(clip.Bytes))
	}
	if clip.ApproxDuration != time.Second {
		t.Errorf("Expected duration 1s, got %s", clip.ApproxDuration)
	}

	// Each clip must decode on its own
	decoded, rate, err := DecodeWAV(clip.Bytes)
	if err != nil {
		t.Fatalf("Clip does not decode independently: %v", err)
	}
	if rate != 22050 || len(decoded) != len(samples) {
		t.Errorf("Decoded %d samples at %d Hz, expected %d at 22050", len(decoded), rate, len(samples))
	}
}

func TestEncodeClipEmptySpan(t *testing.T) {
	if _, err := EncodeClip(&Span{}, 22050); err == nil {
		t.Error("Expected error for empty span")
	}
	if _, err := EncodeClip(nil, 22050); err == nil {
		t.Error("Expected error for nil span")
	}
}

func TestValidateClipAudible(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		audible bool
	}{
		{"loud speech", sineWave(440.0, 22050, 2048, 16000.0), true},
		{"silence", make([]int16, 2048), false},
		{"very low noise", sineWave(440.0, 22050, 2048, 50.0), false},
		// High peak but low average still passes: only failing BOTH floors
		// rejects a clip
		{"single transient", func() []int16 {
			s := make([]int16, 2048)
			s[100] = 20000
			return s
		}(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip, err := EncodeClip(spanFromSamples(tt.samples), 22050)
			if err != nil {
				t.Fatalf("EncodeClip failed: %v", err)
			}
			if got := ValidateClipAudible(clip, 0.12, 0.008); got != tt.audible {
				t.Errorf("ValidateClipAudible = %v, expected %v", got, tt.audible)
			}
		})
	}
}
