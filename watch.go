// FILE: lixenwraith/forgeconfig/watch.go
package forgeconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherRunning is returned by Start on a watcher that is already running
var ErrWatcherRunning = errors.New("watcher already running")

// WatchOptions configures file watching behavior
type WatchOptions struct {
	// PollInterval for file stat checks (minimum 100ms)
	PollInterval time.Duration

	// Debounce duration to avoid rapid reloads
	Debounce time.Duration

	// MaxWatchers limits concurrent subscriber channels
	MaxWatchers int

	// ReloadTimeout bounds each re-resolution
	ReloadTimeout time.Duration

	// PollOnly disables filesystem notifications; changes are then seen on
	// the next poll only
	PollOnly bool
}

// DefaultWatchOptions returns sensible defaults for file watching
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		PollInterval:  DefaultPollInterval,
		Debounce:      DefaultDebounce,
		MaxWatchers:   DefaultMaxWatchers,
		ReloadTimeout: DefaultReloadTimeout,
	}
}

// WatchEvent carries the outcome of a re-resolution triggered by a file change.
// Exactly one of Resolution and Err is set.
type WatchEvent struct {
	Resolution *Resolution
	Err        error
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// Watcher re-resolves a project whenever its manifest or configuration module
// changes. Every reload builds a new configuration graph; graphs handed out
// earlier are never modified.
type Watcher struct {
	mu               sync.RWMutex
	builder          *Builder
	dir              string
	opts             WatchOptions
	files            map[string]fileState
	subscribers      map[int64]chan WatchEvent
	subscriberID     atomic.Int64
	debounceTimer    *time.Timer
	reloadInProgress atomic.Bool
	running          atomic.Bool
	stopped          bool
	notifier         *fsnotify.Watcher
	ctx              context.Context
	cancel           context.CancelFunc
	done             chan struct{}
}

// NewWatcher creates a watcher resolving dir with b
func NewWatcher(b *Builder, dir string, opts WatchOptions) *Watcher {
	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}
	if opts.MaxWatchers <= 0 {
		opts.MaxWatchers = DefaultMaxWatchers
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}
	return &Watcher{
		builder:     b,
		dir:         dir,
		opts:        opts,
		files:       make(map[string]fileState),
		subscribers: make(map[int64]chan WatchEvent),
	}
}

// Start resolves the project once and begins polling. The initial resolution
// is returned directly; subscribers only see later reloads.
func (w *Watcher) Start(ctx context.Context) (*Resolution, error) {
	if !w.running.CompareAndSwap(false, true) {
		return nil, ErrWatcherRunning
	}

	res, err := w.builder.Load(ctx, w.dir)
	if err != nil {
		w.running.Store(false)
		return nil, err
	}

	w.mu.Lock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	if !w.opts.PollOnly {
		notifier, err := fsnotify.NewWatcher()
		if err != nil {
			w.builder.logger.Warn("filesystem notifications unavailable, polling only", "error", err)
		} else {
			w.notifier = notifier
		}
	}
	w.track(res)
	w.mu.Unlock()

	go w.watchLoop()
	return res, nil
}

// Subscribe returns a channel receiving an event per reload. The channel is
// closed when the watcher stops, or immediately if MaxWatchers is reached.
func (w *Watcher) Subscribe() <-chan WatchEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped || len(w.subscribers) >= w.opts.MaxWatchers {
		ch := make(chan WatchEvent)
		close(ch)
		return ch
	}

	// Buffered to keep notification non-blocking
	ch := make(chan WatchEvent, 10)
	w.subscribers[w.subscriberID.Add(1)] = ch
	return ch
}

// SubscriberCount returns the number of active subscriber channels
func (w *Watcher) SubscriberCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subscribers)
}

// IsWatching reports whether the poll loop is running
func (w *Watcher) IsWatching() bool {
	return w.running.Load()
}

// Stop terminates polling and closes every subscriber channel
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel, done := w.cancel, w.done
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	w.mu.Lock()
	for id, ch := range w.subscribers {
		close(ch)
		delete(w.subscribers, id)
	}
	w.mu.Unlock()
}

// track records the files whose change invalidates res. Caller holds mu.
func (w *Watcher) track(res *Resolution) {
	paths := []string{filepath.Join(w.dir, w.builder.manifestName)}
	if res.SourcePath != "" {
		paths = append(paths, res.SourcePath)
	}
	// A conventional module appearing later changes the outcome too
	for _, p := range w.builder.providers {
		for _, ext := range p.Extensions() {
			paths = append(paths, filepath.Join(w.dir, ConventionalConfigName+ext))
		}
	}

	w.files = make(map[string]fileState, len(paths))
	for _, path := range paths {
		w.files[path] = statFile(path)
		if w.notifier == nil {
			continue
		}
		// Directories are watched so files created or replaced by rename are seen
		if err := w.notifier.Add(filepath.Dir(path)); err != nil {
			w.builder.logger.Debug("cannot watch directory", "dir", filepath.Dir(path), "error", err)
		}
	}
}

func statFile(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// watchLoop is the main file watching loop. Notifications trigger an early
// check; the poll ticker catches anything they miss.
func (w *Watcher) watchLoop() {
	defer close(w.done)
	defer w.running.Store(false)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w.notifier != nil {
		defer w.notifier.Close()
		events, errs = w.notifier.Events, w.notifier.Errors
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkAndReload()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if w.isTracked(ev.Name) {
				w.checkAndReload()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.builder.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) isTracked(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[filepath.Clean(path)]
	return ok
}

// checkAndReload schedules a debounced reload if any tracked file changed
func (w *Watcher) checkAndReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := false
	for path, last := range w.files {
		current := statFile(path)
		if current.exists != last.exists || !current.modTime.Equal(last.modTime) || current.size != last.size {
			w.files[path] = current
			changed = true
		}
	}
	if !changed || w.stopped {
		return
	}

	// Debounce rapid changes
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.opts.Debounce, w.performReload)
}

// performReload re-resolves the project and notifies subscribers
func (w *Watcher) performReload() {
	// Prevent concurrent reloads
	if !w.reloadInProgress.CompareAndSwap(false, true) {
		return
	}
	defer w.reloadInProgress.Store(false)

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.ReloadTimeout)
	defer cancel()

	res, err := w.builder.Load(ctx, w.dir)
	if err != nil {
		w.builder.logger.Warn("configuration reload failed", "dir", w.dir, "error", err)
		w.notify(WatchEvent{Err: err})
		return
	}

	w.mu.Lock()
	w.track(res)
	w.mu.Unlock()

	w.builder.logger.Debug("configuration reloaded", "dir", w.dir)
	w.notify(WatchEvent{Resolution: res})
}

// notify sends ev to all subscribers without blocking
func (w *Watcher) notify(ev WatchEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	for _, ch := range w.subscribers {
		select {
		case ch <- ev:
		default:
			// Channel full, skip
		}
	}
}
