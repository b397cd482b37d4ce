package audio

import (
	"bytes"
	"math"
	"testing"
)

// sineWave generates a mono PCM-16 sine tone.
func sineWave(frequency float64, sampleRate, numSamples int, amplitude float64) []int16 {
	samples := make([]int16, numSamples)
	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(sampleRate)
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return samples
}

func TestEncodeWAV(t *testing.T) {
	sampleRate := 22050
	samples := sineWave(440.0, sampleRate, 2205, 16383.0)

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// Header is 44 bytes, payload 2 bytes per sample
	expectedSize := 44 + len(samples)*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	duration, err := WAVDuration(wavData)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}
	expectedDuration := float64(len(samples)) / float64(sampleRate)
	if math.Abs(duration-expectedDuration) > 0.001 {
		t.Errorf("Expected duration %.3f, got %.3f", expectedDuration, duration)
	}
}

func TestEncodeWAVDeterministic(t *testing.T) {
	samples := sineWave(440.0, 22050, 1024, 8000.0)

	first, err := EncodeWAV(samples, 22050)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	second, err := EncodeWAV(samples, 22050)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// Same samples and rate must produce byte-identical output
	if !bytes.Equal(first, second) {
		t.Error("Encoding the same samples twice produced different bytes")
	}
}

func TestDecodeWAVRoundtrip(t *testing.T) {
	originalSamples := []int16{100, -200, 300, -400, 500}
	sampleRate := 22050

	wavData, err := EncodeWAV(originalSamples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decodedSamples, decodedSampleRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decodedSampleRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, decodedSampleRate)
	}
	if len(decodedSamples) != len(originalSamples) {
		t.Fatalf("Expected %d samples, got %d", len(originalSamples), len(decodedSamples))
	}
	for i, original := range originalSamples {
		if decodedSamples[i] != original {
			t.Errorf("Sample %d: expected %d, got %d", i, original, decodedSamples[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV([]int16{}, 22050); err == nil {
		t.Error("Expected error for empty samples")
	}
}

func TestEncodeWAVInvalidSampleRate(t *testing.T) {
	if _, err := EncodeWAV([]int16{100, 200}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestDecodeWAVInvalidData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{1, 2, 3}},
		{"garbage header", bytes.Repeat([]byte{0xAB}, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeWAV(tt.data); err == nil {
				t.Error("Expected error for invalid WAV data")
			}
		})
	}
}
