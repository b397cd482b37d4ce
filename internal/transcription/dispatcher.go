package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
)

// DispatcherConfig contains dispatch queue configuration.
type DispatcherConfig struct {
	// QueueSize bounds the pending clip queue; Enqueue drops when full.
	QueueSize int
	// Concurrency is the number of submission workers (default 1, keeping
	// external calls serialized).
	Concurrency int
	// MinInterval is the minimum time between consecutive submissions
	// regardless of queue depth.
	MinInterval time.Duration
	// MinClipBytes rejects clips below this size before submission,
	// independent of the encoder's amplitude check.
	MinClipBytes int
	// RequestTimeout bounds each transcription call.
	RequestTimeout time.Duration
	// Hints are passed through to the provider on every call.
	Hints Hints
}

// Validate checks dispatcher configuration.
func (c DispatcherConfig) Validate() error {
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("min interval cannot be negative, got %s", c.MinInterval)
	}
	if c.MinClipBytes < 0 {
		return fmt.Errorf("min clip bytes cannot be negative, got %d", c.MinClipBytes)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// ResultFunc receives the recognized text for a successfully transcribed clip.
type ResultFunc func(clip *audio.Clip, text string)

// Dispatcher is the FIFO transcription queue. Workers pull clips one at a
// time, enforce a minimum interval between submissions, and make exactly one
// attempt per clip. Failures are logged and the clip dropped; a failure
// never blocks subsequent queue items and never propagates upward.
type Dispatcher struct {
	cfg      DispatcherConfig
	provider Provider
	logger   *slog.Logger
	onResult ResultFunc

	queue chan *audio.Clip
	wg    sync.WaitGroup

	mu         sync.Mutex
	accepting  bool
	started    bool
	lastSubmit time.Time

	// statistics
	enqueued        uint64
	droppedFull     uint64
	droppedSmall    uint64
	submitted       uint64
	succeeded       uint64
	failedTransient uint64
	failedFormat    uint64
}

// DispatcherStats is a snapshot of dispatcher activity.
type DispatcherStats struct {
	QueueDepth      int    `json:"queue_depth"`
	Enqueued        uint64 `json:"enqueued_total"`
	DroppedFull     uint64 `json:"dropped_full_total"`
	DroppedSmall    uint64 `json:"dropped_small_total"`
	Submitted       uint64 `json:"submitted_total"`
	Succeeded       uint64 `json:"succeeded_total"`
	FailedTransient uint64 `json:"failed_transient_total"`
	FailedFormat    uint64 `json:"failed_format_total"`
}

// NewDispatcher creates a dispatcher around a provider. onResult is invoked
// from a worker goroutine for each successful transcription.
func NewDispatcher(provider Provider, cfg DispatcherConfig, logger *slog.Logger, onResult ResultFunc) (*Dispatcher, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if onResult == nil {
		return nil, fmt.Errorf("result callback cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Dispatcher{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		onResult: onResult,
		queue:    make(chan *audio.Clip, cfg.QueueSize),
	}, nil
}

// Start launches the submission workers.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true
	d.accepting = true

	for i := 0; i < d.cfg.Concurrency; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Enqueue adds a clip to the queue. It never blocks: a full queue or a
// stopped dispatcher drops the clip and returns false.
func (d *Dispatcher) Enqueue(clip *audio.Clip) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	// The lock is held across the send so Stop cannot close the queue
	// between the accepting check and the send.
	if !d.accepting {
		return false
	}

	select {
	case d.queue <- clip:
		d.enqueued++
		return true
	default:
		d.droppedFull++
		d.logger.Warn("dispatch queue full, dropping clip",
			slog.String("clip_id", clip.ID),
			slog.Int("size_bytes", clip.SizeBytes),
		)
		return false
	}
}

// Stop stops accepting new clips, drains the pending queue, and waits for
// in-flight submissions to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started || !d.accepting {
		d.mu.Unlock()
		return
	}
	d.accepting = false
	d.mu.Unlock()

	close(d.queue)
	d.wg.Wait()
}

// QueueDepth returns the number of pending clips.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// GetStats returns a snapshot of dispatcher statistics.
func (d *Dispatcher) GetStats() DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DispatcherStats{
		QueueDepth:      len(d.queue),
		Enqueued:        d.enqueued,
		DroppedFull:     d.droppedFull,
		DroppedSmall:    d.droppedSmall,
		Submitted:       d.submitted,
		Succeeded:       d.succeeded,
		FailedTransient: d.failedTransient,
		FailedFormat:    d.failedFormat,
	}
}

// worker pulls clips off the queue until it is closed and drained.
func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for clip := range d.queue {
		d.submit(clip)
	}
}

// submit gates, paces, and performs a single transcription attempt.
func (d *Dispatcher) submit(clip *audio.Clip) {
	if clip.SizeBytes < d.cfg.MinClipBytes {
		d.mu.Lock()
		d.droppedSmall++
		d.mu.Unlock()
		d.logger.Debug("clip below minimum size, skipping submission",
			slog.String("clip_id", clip.ID),
			slog.Int("size_bytes", clip.SizeBytes),
			slog.Int("min_bytes", d.cfg.MinClipBytes),
		)
		return
	}

	d.pace()

	d.mu.Lock()
	d.submitted++
	d.lastSubmit = time.Now()
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	text, err := d.provider.Transcribe(ctx, clip, d.cfg.Hints)
	elapsed := time.Since(start)

	if err != nil {
		if IsFormatRejected(err) {
			d.mu.Lock()
			d.failedFormat++
			d.mu.Unlock()
			d.logger.Error("transcription rejected clip format, dropping clip",
				slog.String("clip_id", clip.ID),
				slog.String("mime", clip.MIME),
				slog.String("error", err.Error()),
			)
			return
		}
		d.mu.Lock()
		d.failedTransient++
		d.mu.Unlock()
		d.logger.Warn("transcription failed, dropping clip",
			slog.String("clip_id", clip.ID),
			slog.Float64("elapsed", elapsed.Seconds()),
			slog.String("error", err.Error()),
		)
		return
	}

	d.mu.Lock()
	d.succeeded++
	d.mu.Unlock()

	d.logger.Debug("clip transcribed",
		slog.String("clip_id", clip.ID),
		slog.Float64("elapsed", elapsed.Seconds()),
		slog.Int("text_len", len(text)),
	)

	d.onResult(clip, text)
}

// pace enforces the minimum interval between consecutive submissions.
func (d *Dispatcher) pace() {
	d.mu.Lock()
	wait := d.cfg.MinInterval - time.Since(d.lastSubmit)
	d.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
}
