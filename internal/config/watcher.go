package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fileState identifies the config file contents as of the last successful
// load. The mtime gates the cheap skip path; the checksum catches editors
// that rewrite the file without changing it.
type fileState struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher polls a config file and invokes a callback whenever its contents
// change to something valid. Polling (rather than fsnotify) keeps the
// dependency surface small; chat configs change rarely and a few seconds of
// delay is fine.
type Watcher struct {
	path   string
	period time.Duration
	notify func(old, new *Config)

	mu      sync.Mutex
	current *Config
	last    fileState

	stop chan struct{}
	once sync.Once
}

// WatcherOption adjusts how the watcher polls.
type WatcherOption func(*Watcher)

// WithInterval overrides how often the file is polled. Values up to zero
// keep the 5-second default.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.period = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it in a background
// goroutine. It fails if the initial load does, so a bad path or broken file
// surfaces at startup instead of on the first reload.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:   path,
		period: 5 * time.Second,
		notify: onChange,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, st, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current = cfg
	w.last = st

	go w.run()
	return w, nil
}

// Current returns the config from the latest successful load.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.reload()
		}
	}
}

// reload re-reads the file if its mtime moved and swaps in the new config
// when the contents actually differ. A file that no longer parses or
// validates leaves the current config in place.
func (w *Watcher) reload() {
	fi, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: stat failed", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	seenMtime := w.last.mtime
	w.mu.Unlock()
	if fi.ModTime().Equal(seenMtime) {
		return
	}

	cfg, st, err := w.load()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if st.sum == w.last.sum {
		// Touched but unchanged. Remember the new mtime so the next poll
		// takes the skip path again.
		w.last.mtime = st.mtime
		w.mu.Unlock()
		return
	}
	prev := w.current
	w.current = cfg
	w.last = st
	w.mu.Unlock()

	slog.Info("config watcher: reloaded", "path", w.path)

	// Callback runs outside the lock so it may call Current().
	if w.notify != nil {
		w.notify(prev, cfg)
	}
}

// load reads, parses, and validates the watched file.
func (w *Watcher) load() (*Config, fileState, error) {
	fi, err := os.Stat(w.path)
	if err != nil {
		return nil, fileState{}, err
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileState{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}

	return cfg, fileState{mtime: fi.ModTime(), sum: sha256.Sum256(data)}, nil
}
