// Package fsnotify implements ports.Watcher using github.com/fsnotify/fsnotify.
// It watches a root directory recursively, registers new subdirectories as
// they appear and classifies raw notifications into change records.
package fsnotify

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corey/lucid/internal/domain/change"
	"github.com/corey/lucid/internal/ports"
)

// DefaultStopTimeout bounds how long Stop waits for the loop to exit.
const DefaultStopTimeout = 2 * time.Second

// maxGone caps the set of recently removed directories.
const maxGone = 1024

// Options configures a Watcher.
type Options struct {
	// Classifier decides what each notification means. Its Root should be
	// the directory passed to Watch. Nil uses default extensions and no
	// ignore globs.
	Classifier  *change.Classifier
	StopTimeout time.Duration
	Logger      *slog.Logger

	// OnDirRemoved runs on the loop goroutine after a watched directory is
	// invalidated, so documents below it can be purged.
	OnDirRemoved func(dir string)

	// OnOverflow runs on the loop goroutine when the kernel queue overflowed
	// and events were lost.
	OnOverflow func()
}

// Watcher implements ports.Watcher.
type Watcher struct {
	fw          *fsnotify.Watcher
	reg         *Registry
	classifier  *change.Classifier
	stopTimeout time.Duration
	logger      *slog.Logger
	onDirGone   func(string)
	onOverflow  func()

	done     chan struct{} // closed by Stop
	exited   chan struct{} // closed when the loop returns
	exitOnce sync.Once

	mu      sync.Mutex
	started bool
	stopped bool

	gone map[string]bool // loop goroutine only
}

// NewWatcher creates a watcher. Nothing is watched until Watch.
func NewWatcher(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "watcher")
	classifier := opts.Classifier
	if classifier == nil {
		classifier = change.NewClassifier(change.ClassifierOptions{Logger: logger})
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Watcher{
		fw:          fw,
		reg:         NewRegistry(fw, classifier.Ignored, logger),
		classifier:  classifier,
		stopTimeout: stopTimeout,
		logger:      logger,
		onDirGone:   opts.OnDirRemoved,
		onOverflow:  opts.OnOverflow,
		done:        make(chan struct{}),
		exited:      make(chan struct{}),
		gone:        make(map[string]bool),
	}, nil
}

// Registry exposes the directory registry.
func (w *Watcher) Registry() *Registry { return w.reg }

// Watch registers root recursively and starts the loop goroutine.
// onChange is called from that goroutine only.
func (w *Watcher) Watch(root string, onChange func(ports.ChangeRecord)) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ports.ErrConfig, root, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return errors.New("fsnotify: watcher stopped")
	}
	if w.started {
		return errors.New("fsnotify: already watching")
	}

	// Files already on disk are the reconcile scan's job, not change events.
	if _, err := w.reg.RegisterRecursively(absRoot); err != nil {
		return err
	}
	w.started = true
	w.logger.Info("watching", "root", absRoot, "dirs", w.reg.Len())

	go w.loop(onChange)
	return nil
}

func (w *Watcher) loop(onChange func(ports.ChangeRecord)) {
	defer w.exitOnce.Do(func() { close(w.exited) })

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.dispatch(event, onChange)
			if w.reg.Len() == 0 {
				w.logger.Info("no directories left to watch, loop ends")
				_ = w.fw.Close()
				return
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.classifier.Classify(change.RawEvent{Op: change.OpOverflow})
				if w.onOverflow != nil {
					w.onOverflow()
				}
				continue
			}
			w.logger.Warn("watch error", "err", err)

		case <-w.done:
			return
		}
	}
}

// dispatch handles one notification. Nothing here may end the loop.
func (w *Watcher) dispatch(event fsnotify.Event, onChange func(ports.ChangeRecord)) {
	path := filepath.Clean(event.Name)
	op := convertOp(event.Op)

	if op == change.OpCreate {
		// the path exists again; a later remove is a real one
		delete(w.gone, path)
	}
	if op == change.OpRemove || op == change.OpRename {
		if w.reg.IsRegistered(path) {
			w.invalidate(path)
			return
		}
		if w.gone[path] {
			// second notification for a directory already invalidated
			delete(w.gone, path)
			return
		}
	}

	h, parent, ok := w.reg.Resolve(path)
	if !ok {
		w.logger.Debug("event from unknown watch, dropped", "path", path, "op", op)
		return
	}

	isDir := false
	if op == change.OpCreate || op == change.OpWrite {
		if info, err := os.Lstat(path); err == nil {
			isDir = info.IsDir()
		}
	}

	d := w.classifier.Classify(change.RawEvent{Op: op, Path: path, IsDir: isDir})
	switch d.Action {
	case change.Emit:
		onChange(d.Record)
	case change.RegisterDir:
		files, err := w.reg.RegisterRecursively(path)
		if err != nil {
			w.logger.Debug("register new dir failed", "dir", path, "err", err)
			return
		}
		for _, f := range files {
			fd := w.classifier.Classify(change.RawEvent{Op: change.OpCreate, Path: f})
			if fd.Action == change.Emit {
				onChange(fd.Record)
			}
		}
	case change.Rescan:
		if w.onOverflow != nil {
			w.onOverflow()
		}
	default:
		w.logger.Debug("event ignored", "path", path, "handle", h, "dir", parent, "reason", d.Reason)
	}
}

// invalidate drops a removed directory and its descendants from the
// registry and hands it to OnDirRemoved.
func (w *Watcher) invalidate(dir string) {
	dirs := w.reg.Unregister(dir)
	if len(w.gone) >= maxGone {
		clear(w.gone)
	}
	for _, d := range dirs {
		w.gone[d] = true
	}
	w.logger.Info("directory watch invalidated", "dir", dir, "dirs", len(dirs),
		"err", ports.ErrWatchInvalidated)
	if w.onDirGone != nil {
		w.onDirGone(dir)
	}
}

// convertOp picks the most significant bit of an fsnotify op.
func convertOp(op fsnotify.Op) change.Op {
	switch {
	case op.Has(fsnotify.Remove):
		return change.OpRemove
	case op.Has(fsnotify.Rename):
		return change.OpRename
	case op.Has(fsnotify.Create):
		return change.OpCreate
	case op.Has(fsnotify.Write):
		return change.OpWrite
	default:
		return change.OpChmod
	}
}

// Stop ends monitoring and releases every watch handle. It waits up to the
// stop timeout for the loop to exit, then returns ErrStopTimeout.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	close(w.done)
	err := w.fw.Close()
	w.mu.Unlock()

	if !started {
		w.exitOnce.Do(func() { close(w.exited) })
		return err
	}
	select {
	case <-w.exited:
	case <-time.After(w.stopTimeout):
		w.logger.Warn("watch loop did not exit", "timeout", w.stopTimeout)
		return ports.ErrStopTimeout
	}
	if err != nil {
		return fmt.Errorf("fsnotify close: %w", err)
	}
	return nil
}

// Done is closed when the loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.exited
}
