// Package refresh keeps a shared, point-in-time snapshot of the index and
// swaps it when the store reports committed changes.
//
// Consistency policy is read-your-writes: every Acquire refreshes first,
// under the coordinator's mutex, so a caller never sees a snapshot older
// than the latest commit that happened before its call. Only the
// check-and-swap is serialized; queries run on their own lease without
// holding any lock.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/corey/lucid/internal/ports"
)

// Coordinator owns the current snapshot. Safe for concurrent use.
type Coordinator struct {
	store  ports.IndexStore
	logger *slog.Logger

	mu      sync.Mutex // refresh lock; guards cur and closed
	cur     *shared
	closed  bool
	reopens atomic.Uint64
}

// shared is a refcounted snapshot. The coordinator holds one reference while
// the snapshot is current; each lease holds one more. The last release
// closes it in the store.
type shared struct {
	store ports.IndexStore
	snap  ports.Snapshot
	refs  atomic.Int64
}

func (s *shared) release(logger *slog.Logger) {
	if s.refs.Add(-1) != 0 {
		return
	}
	if err := s.store.CloseSnapshot(s.snap); err != nil {
		logger.Warn("close snapshot", "generation", s.snap.Generation(), "err", err)
	}
}

// Lease pins a snapshot for the duration of one request.
type Lease struct {
	s      *shared
	logger *slog.Logger
	once   sync.Once
}

// Snapshot returns the pinned snapshot.
func (l *Lease) Snapshot() ports.Snapshot { return l.s.snap }

// Generation returns the pinned snapshot's generation.
func (l *Lease) Generation() uint64 { return l.s.snap.Generation() }

// Release drops the lease. Calling it more than once is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() { l.s.release(l.logger) })
}

// New opens the initial snapshot.
func New(store ports.IndexStore, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	snap, err := store.OpenSnapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: open initial snapshot: %w", ports.ErrIndexStore, err)
	}
	c := &Coordinator{
		store:  store,
		logger: logger.With("component", "refresh"),
		cur:    &shared{store: store, snap: snap},
	}
	c.cur.refs.Store(1)
	return c, nil
}

// Refresh swaps in a new snapshot if the store changed since the current
// one. It reports whether a reopen happened.
func (c *Coordinator) Refresh() (bool, error) {
	c.mu.Lock()
	old, err := c.refreshLocked()
	c.mu.Unlock()
	if old != nil {
		old.release(c.logger)
	}
	return old != nil, err
}

// refreshLocked returns the superseded snapshot, to be released by the caller
// once the mutex is dropped.
func (c *Coordinator) refreshLocked() (*shared, error) {
	if c.closed {
		return nil, fmt.Errorf("%w: coordinator closed", ports.ErrSnapshotClosed)
	}
	changed, err := c.store.HasChangedSince(c.cur.snap)
	if err != nil {
		return nil, fmt.Errorf("%w: has changed: %w", ports.ErrIndexStore, err)
	}
	if !changed {
		return nil, nil
	}
	snap, err := c.store.OpenSnapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: reopen: %w", ports.ErrIndexStore, err)
	}
	next := &shared{store: c.store, snap: snap}
	next.refs.Store(1)
	old := c.cur
	c.cur = next
	c.reopens.Add(1)
	c.logger.Debug("snapshot reopened", "from", old.snap.Generation(), "to", snap.Generation())
	return old, nil
}

// Acquire refreshes and leases the resulting snapshot. The caller must
// Release the lease.
func (c *Coordinator) Acquire() (*Lease, error) {
	c.mu.Lock()
	old, err := c.refreshLocked()
	var lease *Lease
	if err == nil {
		c.cur.refs.Add(1)
		lease = &Lease{s: c.cur, logger: c.logger}
	}
	c.mu.Unlock()
	if old != nil {
		old.release(c.logger)
	}
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// Search refreshes, then runs query against the refreshed snapshot.
func (c *Coordinator) Search(ctx context.Context, query string, limit int) ([]ports.Hit, uint64, error) {
	lease, err := c.Acquire()
	if err != nil {
		return nil, 0, err
	}
	defer lease.Release()
	hits, err := c.store.Search(ctx, lease.Snapshot(), query, limit)
	if err != nil {
		return nil, 0, err
	}
	return hits, lease.Generation(), nil
}

// Generation returns the current snapshot's generation without refreshing.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return 0
	}
	return c.cur.snap.Generation()
}

// Reopens counts snapshot swaps since construction.
func (c *Coordinator) Reopens() uint64 {
	return c.reopens.Load()
}

// Close releases the current snapshot. Outstanding leases stay valid until
// released.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cur := c.cur
	c.cur = nil
	c.mu.Unlock()
	cur.release(c.logger)
}
