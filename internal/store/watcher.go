package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 50 * time.Millisecond

// externalSource is the part of JSONFileStore the watcher relies on.
type externalSource interface {
	Invalidator
	Path() string
	ChangedExternally() bool
}

// Watcher drops a JSON store's cache when its file is rewritten by another process.
type Watcher struct {
	source   externalSource
	file     string
	watcher  *fsnotify.Watcher
	onChange func()

	mu    sync.Mutex
	timer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher starts watching the directory that holds the store's file.
// onChange, if non-nil, runs after each external change has been applied.
func NewWatcher(source externalSource, onChange func()) (*Watcher, error) {
	dir := filepath.Dir(source.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		source:   source,
		file:     filepath.Base(source.Path()),
		watcher:  fw,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("state watcher error", "component", "store", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	// Our own saves go through <file>.tmp and a rename onto <file>.
	if filepath.Base(event.Name) != w.file {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, w.apply)
}

func (w *Watcher) apply() {
	if w.ctx.Err() != nil {
		return
	}
	if !w.source.ChangedExternally() {
		return
	}

	w.source.Invalidate()
	slog.Info("state document changed on disk, cache dropped",
		"component", "store",
		"path", w.source.Path(),
	)
	if w.onChange != nil {
		w.onChange()
	}
}
