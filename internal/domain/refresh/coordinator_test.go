package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/lucid/internal/domain/index"
	"github.com/corey/lucid/internal/ports"
)

// =============================================================================
// countingStore wraps MemStore and counts snapshot opens and closes.
// =============================================================================

type countingStore struct {
	*index.MemStore
	opens  atomic.Int64
	closes atomic.Int64
}

func (c *countingStore) OpenSnapshot() (ports.Snapshot, error) {
	c.opens.Add(1)
	return c.MemStore.OpenSnapshot()
}

func (c *countingStore) CloseSnapshot(s ports.Snapshot) error {
	c.closes.Add(1)
	return c.MemStore.CloseSnapshot(s)
}

func newCounting(t *testing.T) *countingStore {
	t.Helper()
	m, err := index.NewMemStore(index.MemStoreOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return &countingStore{MemStore: m}
}

func put(t *testing.T, s ports.IndexStore, key, content string) {
	t.Helper()
	require.NoError(t, s.UpsertDocument(ports.Document{Key: key, Name: key, Path: key, Content: content}))
	require.NoError(t, s.Commit())
}

func TestRefresh_NoChangeIsNoop(t *testing.T) {
	store := newCounting(t)
	c, err := New(store, nil)
	require.NoError(t, err)
	defer c.Close()

	reopened, err := c.Refresh()
	require.NoError(t, err)
	assert.False(t, reopened)
	assert.Equal(t, int64(1), store.opens.Load())
	assert.Zero(t, c.Reopens())
}

func TestRefresh_SwapsAndReleasesOld(t *testing.T) {
	store := newCounting(t)
	c, err := New(store, nil)
	require.NoError(t, err)
	defer c.Close()

	gen := c.Generation()
	put(t, store, "/a.txt", "hello")

	reopened, err := c.Refresh()
	require.NoError(t, err)
	assert.True(t, reopened)
	assert.Greater(t, c.Generation(), gen)
	assert.Equal(t, int64(1), store.closes.Load(), "superseded snapshot with no leases is closed")
}

func TestSearch_ReadYourWrites(t *testing.T) {
	store := newCounting(t)
	c, err := New(store, nil)
	require.NoError(t, err)
	defer c.Close()

	put(t, store, "/a.txt", "hello world")
	hits, _, err := c.Search(context.Background(), "hello", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	put(t, store, "/a.txt", "goodbye")
	hits, _, err = c.Search(context.Background(), "hello", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLease_OutlivesSwap(t *testing.T) {
	store := newCounting(t)
	put(t, store, "/a.txt", "hello")
	c, err := New(store, nil)
	require.NoError(t, err)
	defer c.Close()

	lease, err := c.Acquire()
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocument("/a.txt"))
	require.NoError(t, store.Commit())
	_, err = c.Refresh()
	require.NoError(t, err)
	assert.Zero(t, store.closes.Load(), "leased snapshot must stay open")

	hits, err := store.Search(context.Background(), lease.Snapshot(), "hello", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "in-flight query keeps its view")

	lease.Release()
	lease.Release()
	assert.Equal(t, int64(1), store.closes.Load())

	_, err = store.Search(context.Background(), lease.Snapshot(), "hello", 10)
	assert.ErrorIs(t, err, ports.ErrSnapshotClosed)
}

func TestClose_ThenAcquireFails(t *testing.T) {
	store := newCounting(t)
	c, err := New(store, nil)
	require.NoError(t, err)
	c.Close()
	c.Close()

	_, err = c.Acquire()
	assert.ErrorIs(t, err, ports.ErrSnapshotClosed)
	assert.Equal(t, int64(1), store.closes.Load())
}

// =============================================================================
// Concurrency: exactly one reopen per committed batch
// =============================================================================

func TestConcurrentRefresh_OneReopenPerBatch(t *testing.T) {
	store := newCounting(t)
	c, err := New(store, nil)
	require.NoError(t, err)
	defer c.Close()

	const workers = 32
	const batches = 20

	for b := 0; b < batches; b++ {
		put(t, store, "/doc.txt", "round")
		snap, err := store.MemStore.OpenSnapshot()
		require.NoError(t, err)
		committed := snap.Generation()

		var wg sync.WaitGroup
		var stale atomic.Int64
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				lease, err := c.Acquire()
				if err != nil {
					stale.Add(1)
					return
				}
				if lease.Generation() < committed {
					stale.Add(1)
				}
				lease.Release()
			}()
		}
		close(start)
		wg.Wait()

		assert.Zero(t, stale.Load(), "batch %d: a reader saw a snapshot older than its commit", b)
		assert.Equal(t, uint64(b+1), c.Reopens(), "batch %d", b)
	}
	// initial open plus one per batch (the probe snapshots bypass the counter)
	assert.Equal(t, int64(batches+1), store.opens.Load())
}
