package app

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/corey/lucid/internal/ports"
)

// Notifier delivers change records and keyword-watch results to the
// registered observers, in registration order. It is called from the watch
// loop goroutine; observers that need another execution context do their
// own handoff (see QueueObserver). A panicking observer is logged and does
// not take the loop down.
type Notifier struct {
	logger *slog.Logger

	mu        sync.RWMutex
	observers []ports.Observer
}

// NewNotifier creates a notifier with no observers.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{logger: logger.With("component", "notifier")}
}

// Register adds an observer. Nil is ignored.
func (n *Notifier) Register(o ports.Observer) {
	if o == nil {
		return
	}
	n.mu.Lock()
	n.observers = append(n.observers, o)
	n.mu.Unlock()
}

// Len returns the number of registered observers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

func (n *Notifier) snapshot() []ports.Observer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.observers
}

// Notify calls OnChange on every observer exactly once.
func (n *Notifier) Notify(rec ports.ChangeRecord) {
	for _, o := range n.snapshot() {
		n.safely("OnChange", func() { o.OnChange(rec) })
	}
}

// NotifyResults calls OnSearchResults on every observer.
func (n *Notifier) NotifyResults(query string, hits []ports.Hit) {
	for _, o := range n.snapshot() {
		n.safely("OnSearchResults", func() { o.OnSearchResults(query, hits) })
	}
}

// Close closes every observer that is an io.Closer, releasing any of them
// blocked on a full handoff. Called before the watch loop is stopped.
func (n *Notifier) Close() error {
	var errs []error
	for _, o := range n.snapshot() {
		if c, ok := o.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) safely(method string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("observer panicked", "method", method, "panic", r)
		}
	}()
	fn()
}

// Event is one item handed off by a QueueObserver: either a change record
// or a keyword-watch result set.
type Event struct {
	Change *ports.ChangeRecord
	Query  string
	Hits   []ports.Hit
}

// QueueObserver hands events to a bounded channel drained by the
// consumer's own loop. When the buffer is full the watch loop waits for the
// consumer; nothing is dropped until Close, after which events are
// discarded.
type QueueObserver struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewQueueObserver creates a queue with the given capacity (minimum 1).
func NewQueueObserver(capacity int) *QueueObserver {
	if capacity < 1 {
		capacity = 1
	}
	return &QueueObserver{ch: make(chan Event, capacity), done: make(chan struct{})}
}

// Events returns the receive side of the queue. It is never closed.
func (q *QueueObserver) Events() <-chan Event { return q.ch }

// Close releases a blocked sender and stops the handoff. Safe to call more
// than once.
func (q *QueueObserver) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

func (q *QueueObserver) OnChange(rec ports.ChangeRecord) {
	q.offer(Event{Change: &rec})
}

func (q *QueueObserver) OnSearchResults(query string, hits []ports.Hit) {
	q.offer(Event{Query: query, Hits: hits})
}

func (q *QueueObserver) offer(ev Event) {
	select {
	case <-q.done:
		return
	default:
	}
	select {
	case q.ch <- ev:
	case <-q.done:
	}
}

// LogObserver writes every event to a logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (l LogObserver) OnChange(rec ports.ChangeRecord) {
	l.Logger.Info("change", "kind", rec.Kind.String(), "file", rec.FileName, "path", rec.AbsolutePath)
}

func (l LogObserver) OnSearchResults(query string, hits []ports.Hit) {
	l.Logger.Info("watch query", "query", query, "hits", len(hits))
}
