package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the fixed size of the canonical PCM WAV header this
// package writes: RIFF chunk descriptor, "fmt " subchunk, "data" subchunk.
const wavHeaderSize = 44

// WAVHeader is the canonical 44-byte linear-PCM WAV header.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 = linear PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // payload bytes
}

// newWAVHeader builds the header for a mono 16-bit payload of numSamples
// samples. Given the same sample rate it is byte-identical for equal
// payload sizes, which keeps encoded output deterministic.
func newWAVHeader(numSamples, sampleRate int) WAVHeader {
	const (
		channels      = uint16(1)
		bitsPerSample = uint16(16)
	)
	dataSize := uint32(numSamples * 2)
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(channels) * uint32(bitsPerSample) / 8,
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// EncodeWAV encodes mono PCM-16 samples into one self-contained WAV object.
// The result decodes on its own; callers must never concatenate two encoded
// outputs into a single payload.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty sample sequence")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	header := newWAVHeader(len(samples), sampleRate)

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write PCM payload: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes data produced by EncodeWAV back into PCM-16 samples and
// the sample rate recorded in the header.
func DecodeWAV(data []byte) ([]int16, int, error) {
	header, err := readWAVHeader(data)
	if err != nil {
		return nil, 0, err
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, fmt.Errorf("no audio payload in WAV data")
	}

	reader := bytes.NewReader(data[wavHeaderSize:])
	samples := make([]int16, numSamples)
	if err := binary.Read(reader, binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("failed to read PCM payload: %w", err)
	}

	return samples, int(header.SampleRate), nil
}

// WAVDuration reports the playback duration encoded in a WAV header.
func WAVDuration(data []byte) (float64, error) {
	header, err := readWAVHeader(data)
	if err != nil {
		return 0, err
	}
	if header.SampleRate == 0 {
		return 0, fmt.Errorf("invalid sample rate: 0")
	}
	return float64(header.Subchunk2Size/2) / float64(header.SampleRate), nil
}

// wavPayload returns the raw PCM bytes of an encoded WAV object, skipping
// the header. Used by the post-encode silence validation.
func wavPayload(data []byte) ([]byte, error) {
	header, err := readWAVHeader(data)
	if err != nil {
		return nil, err
	}
	end := wavHeaderSize + int(header.Subchunk2Size)
	if end > len(data) {
		end = len(data)
	}
	return data[wavHeaderSize:end], nil
}

// readWAVHeader parses and validates the fixed header of an encoded clip.
func readWAVHeader(data []byte) (WAVHeader, error) {
	var header WAVHeader
	if len(data) < wavHeaderSize {
		return header, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return header, fmt.Errorf("invalid WAV data: missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return header, fmt.Errorf("invalid WAV data: missing WAVE format")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return header, fmt.Errorf("invalid WAV data: missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return header, fmt.Errorf("invalid WAV data: missing data chunk")
	}
	if header.AudioFormat != 1 {
		return header, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return header, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}
	if header.NumChannels != 1 {
		return header, fmt.Errorf("unsupported channel count: %d (only mono is supported)", header.NumChannels)
	}

	return header, nil
}
