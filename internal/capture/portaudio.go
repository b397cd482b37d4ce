package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
)

// frameChannelDepth buffers a handful of frames so a slow consumer tick
// never blocks the audio callback. The callback drops frames instead of
// blocking when the channel is full.
const frameChannelDepth = 16

// Microphone captures mono PCM-16 frames from the default input device via
// PortAudio. The audio callback only copies samples and hands them off; it
// never blocks on downstream work.
type Microphone struct {
	sampleRate int
	frameSize  int
	logger     *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	frames  chan audio.Frame
	running bool

	framesDelivered uint64
	framesDropped   uint64
}

// NewMicrophone creates a microphone source.
func NewMicrophone(sampleRate, frameSize int, logger *slog.Logger) (*Microphone, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}

	return &Microphone{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		logger:     logger,
	}, nil
}

// Start opens the default input stream and begins delivering frames. An
// open/start failure means the capture source is unavailable (permission
// denied, no device); the caller must surface it and not retry.
func (m *Microphone) Start(ctx context.Context) (<-chan audio.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil, fmt.Errorf("microphone already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	frames := make(chan audio.Frame, frameChannelDepth)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.frameSize, func(in []int16) {
		samples := make([]int16, len(in))
		copy(samples, in)
		frame := audio.Frame{
			Samples:    samples,
			SampleRate: m.sampleRate,
			Captured:   time.Now(),
		}
		select {
		case frames <- frame:
			m.framesDelivered++
		default:
			m.framesDropped++
		}
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	m.stream = stream
	m.frames = frames
	m.running = true

	m.logger.Info("microphone capture started",
		slog.Int("sample_rate", m.sampleRate),
		slog.Int("frame_size", m.frameSize),
	)

	return frames, nil
}

// Stop stops the stream and releases the audio device. The frame channel is
// closed so consumers unblock.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	var firstErr error
	if err := m.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := m.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close input stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to terminate PortAudio: %w", err)
	}

	close(m.frames)
	m.stream = nil

	m.logger.Info("microphone capture stopped",
		slog.Uint64("frames_delivered", m.framesDelivered),
		slog.Uint64("frames_dropped", m.framesDropped),
	)

	return firstErr
}

// ListInputDevices enumerates available audio input devices.
func ListInputDevices() ([]*portaudio.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	inputs := make([]*portaudio.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}
