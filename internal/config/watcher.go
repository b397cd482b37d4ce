package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the bursts of write events editors and atomic
// renames produce into a single reload.
const debounceWindow = 250 * time.Millisecond

// ReloadFunc receives each successfully reloaded and validated configuration.
type ReloadFunc func(cfg *Config)

// Watcher reloads the configuration file when it changes on disk. A reload
// that fails to parse or validate is logged and discarded; the previous
// configuration stays in effect.
type Watcher struct {
	path     string
	logger   *slog.Logger
	onReload ReloadFunc

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	reloads uint64
	failed  uint64
}

// NewWatcher creates a config file watcher. The watch is placed on the
// file's directory so atomic replace-by-rename updates are still observed.
func NewWatcher(path string, logger *slog.Logger, onReload ReloadFunc) (*Watcher, error) {
	if onReload == nil {
		return nil, fmt.Errorf("reload callback cannot be nil")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:     path,
		logger:   logger,
		onReload: onReload,
		watcher:  fsw,
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

// Stop ends the watch.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
	w.wg.Wait()
}

// Reloads returns how many reloads succeeded and failed.
func (w *Watcher) Reloads() (succeeded, failed uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads, w.failed
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
				debounceC = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(debounceWindow)
			}

		case <-debounceC:
			debounce = nil
			debounceC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.mu.Lock()
		w.failed++
		w.mu.Unlock()
		w.logger.Error("config reload failed, keeping previous configuration",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", slog.String("path", w.path))
	w.onReload(cfg)
}
