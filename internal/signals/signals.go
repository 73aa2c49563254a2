// Package signals lets a separate process stop a running validation by
// dropping a kill file into the project state directory.
package signals

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// KillFile is the name of the file that requests a stop.
const KillFile = "kill"

// Dir returns the signals directory under a state directory.
func Dir(stateDir string) string {
	return filepath.Join(stateDir, "signals")
}

// Watcher watches the signals directory and cancels a context when a kill
// file appears.
type Watcher struct {
	dir string

	mu      sync.RWMutex
	stopped bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewWatcher creates the signals directory under stateDir and starts
// watching it. When fsnotify is unavailable the watcher still answers
// ShouldStop by checking the file directly.
func NewWatcher(stateDir string) (*Watcher, error) {
	dir := Dir(stateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:  dir,
		done: make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return w, nil
	}
	w.watcher = fw
	return w, nil
}

// Watch returns a context that is cancelled when a kill file shows up or
// parent is done. The returned cancel func must be called to release it.
func (w *Watcher) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	if w.ShouldStop() {
		cancel(ErrStopRequested)
		return ctx, func() { cancel(context.Canceled) }
	}

	go w.loop(ctx, cancel)
	return ctx, func() { cancel(context.Canceled) }
}

func (w *Watcher) loop(ctx context.Context, cancel context.CancelCauseFunc) {
	var events chan fsnotify.Event
	var errs chan error
	if w.watcher != nil {
		events = w.watcher.Events
		errs = w.watcher.Errors
	}

	// Polling covers filesystems where fsnotify misses events.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(event.Name) == KillFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.markStopped()
				cancel(ErrStopRequested)
				return
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-ticker.C:
			if w.ShouldStop() {
				cancel(ErrStopRequested)
				return
			}
		}
	}
}

func (w *Watcher) markStopped() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}

// ShouldStop reports whether a stop has been requested.
func (w *Watcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(w.dir, KillFile)); err == nil {
		w.markStopped()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// Clear removes the kill file and resets the stop state.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = false
	os.Remove(filepath.Join(w.dir, KillFile))
}

// Close stops watching.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// SendKill writes the kill file under stateDir.
func SendKill(stateDir string) error {
	dir := Dir(stateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, KillFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}
