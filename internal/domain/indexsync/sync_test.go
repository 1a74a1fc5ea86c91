package indexsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/lucid/internal/domain/change"
	"github.com/corey/lucid/internal/domain/index"
	"github.com/corey/lucid/internal/ports"
)

// =============================================================================
// Synchronizer against the in-memory store
// =============================================================================

type fixture struct {
	root  string
	store *index.MemStore
	sync  *Synchronizer
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := index.NewMemStore(index.MemStoreOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	o := Options{
		Store: store,
		Classifier: change.NewClassifier(change.ClassifierOptions{
			Root:   root,
			Filter: change.NewExtensionFilter([]string{"txt", "md"}),
			Ignore: change.DefaultIgnore,
		}),
	}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := New(o)
	require.NoError(t, err)
	return &fixture{root: root, store: store, sync: s}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (f *fixture) search(t *testing.T, q string) []ports.Hit {
	t.Helper()
	snap, err := f.store.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = f.store.CloseSnapshot(snap) }()
	hits, err := f.store.Search(context.Background(), snap, q, 10)
	require.NoError(t, err)
	return hits
}

func TestUpsert_VisibleAfterCall(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "a.txt", "hello world")

	changed, err := f.sync.Upsert(p)
	require.NoError(t, err)
	assert.True(t, changed)

	hits := f.search(t, "hello")
	require.Len(t, hits, 1)
	assert.Equal(t, "a.txt", hits[0].Name)
	assert.Equal(t, p, hits[0].Path)
}

func TestUpsert_UnchangedContentSkipsCommit(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "a.txt", "same")
	_, err := f.sync.Upsert(p)
	require.NoError(t, err)

	snap, err := f.store.OpenSnapshot()
	require.NoError(t, err)

	changed, err := f.sync.Upsert(p)
	require.NoError(t, err)
	assert.False(t, changed)

	moved, err := f.store.HasChangedSince(snap)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestUpsert_SameBaseNameDifferentDirs(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "x/notes.txt", "shared term")
	b := f.write(t, "y/notes.txt", "shared term")
	_, err := f.sync.Upsert(a)
	require.NoError(t, err)
	_, err = f.sync.Upsert(b)
	require.NoError(t, err)

	assert.Len(t, f.search(t, "shared"), 2)
}

func TestUpsert_MissingFileIsTransient(t *testing.T) {
	f := newFixture(t)
	_, err := f.sync.Upsert(filepath.Join(f.root, "gone.txt"))
	assert.ErrorIs(t, err, ports.ErrTransient)
}

func TestUpsert_TooLargeDropsDocument(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MaxFileBytes = 16 })
	p := f.write(t, "a.txt", "small")
	_, err := f.sync.Upsert(p)
	require.NoError(t, err)
	require.Len(t, f.search(t, "small"), 1)

	f.write(t, "a.txt", "small but now far beyond the limit")
	changed, err := f.sync.Upsert(p)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, f.search(t, "small"))
}

func TestUpsert_BinaryContentAccepted(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "blob.txt", "\x00\xff\xfe marker \x01")
	_, err := f.sync.Upsert(p)
	require.NoError(t, err)
	assert.Len(t, f.search(t, "marker"), 1)
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	f := newFixture(t)
	changed, err := f.sync.Remove(filepath.Join(f.root, "nothing.txt"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApply_Lifecycle(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "a.txt", "hello world")
	rec := ports.ChangeRecord{FileName: "a.txt", AbsolutePath: p, Kind: ports.Created}
	_, err := f.sync.Apply(rec)
	require.NoError(t, err)
	assert.Len(t, f.search(t, "hello"), 1)

	f.write(t, "a.txt", "goodbye")
	rec.Kind = ports.Modified
	_, err = f.sync.Apply(rec)
	require.NoError(t, err)
	assert.Empty(t, f.search(t, "hello"))
	assert.Len(t, f.search(t, "goodbye"), 1)

	require.NoError(t, os.Remove(p))
	rec.Kind = ports.Deleted
	_, err = f.sync.Apply(rec)
	require.NoError(t, err)
	assert.Empty(t, f.search(t, "goodbye"))

	changed, err := f.sync.Apply(rec)
	require.NoError(t, err, "repeated delete is a no-op")
	assert.False(t, changed)
}

func TestRemoveTree(t *testing.T) {
	f := newFixture(t)
	for _, rel := range []string{"sub/a.txt", "sub/deep/b.txt", "subway.txt"} {
		_, err := f.sync.Upsert(f.write(t, rel, "tree"))
		require.NoError(t, err)
	}

	n, err := f.sync.RemoveTree(filepath.Join(f.root, "sub"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits := f.search(t, "tree")
	require.Len(t, hits, 1)
	assert.Equal(t, "subway.txt", hits[0].Name)
}

// =============================================================================
// Reconcile
// =============================================================================

func TestReconcile_IndexesTreeAndDropsStale(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "alpha")
	f.write(t, "docs/b.md", "beta")
	f.write(t, "skip.bin", "alpha")
	f.write(t, ".git/config.txt", "alpha")
	f.write(t, "node_modules/pkg/readme.md", "alpha")

	res, err := f.sync.Reconcile(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Upserted)
	assert.Len(t, f.search(t, "alpha"), 1)
	assert.Len(t, f.search(t, "beta"), 1)

	require.NoError(t, os.Remove(filepath.Join(f.root, "a.txt")))
	f.write(t, "docs/c.md", "gamma")

	res, err = f.sync.Reconcile(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 1, res.Deleted)
	assert.Empty(t, f.search(t, "alpha"))
	assert.Len(t, f.search(t, "gamma"), 1)
	assert.Equal(t, 2, f.sync.Len())
}

func TestReconcile_SingleCommit(t *testing.T) {
	f := newFixture(t)
	for _, rel := range []string{"a.txt", "b.txt", "c.txt"} {
		f.write(t, rel, "x "+rel)
	}
	before, err := f.store.OpenSnapshot()
	require.NoError(t, err)

	_, err = f.sync.Reconcile(context.Background(), f.root)
	require.NoError(t, err)

	after, err := f.store.OpenSnapshot()
	require.NoError(t, err)
	assert.Equal(t, before.Generation()+1, after.Generation())
}

func TestReconcile_MissingRoot(t *testing.T) {
	f := newFixture(t)
	_, err := f.sync.Reconcile(context.Background(), filepath.Join(f.root, "nope"))
	assert.ErrorIs(t, err, ports.ErrConfig)
}

func TestReconcile_CanceledContext(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "alpha")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.sync.Reconcile(ctx, f.root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_SeedsFromStore(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "a.txt", "seed")
	_, err := f.sync.Upsert(p)
	require.NoError(t, err)

	again, err := New(Options{Store: f.store})
	require.NoError(t, err)
	changed, err := again.Upsert(p)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestReconcile_ConcurrentUpsertSurvives(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Workers = 8 })
	for i := range 1500 {
		f.write(t, fmt.Sprintf("bulk/%04d.txt", i), fmt.Sprintf("bulk file %d", i))
	}

	for trial := range 20 {
		fresh := filepath.Join(f.root, fmt.Sprintf("fresh-%d.txt", trial))
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.sync.Reconcile(context.Background(), f.root)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, os.WriteFile(fresh, []byte("freshly written"), 0o644))
			_, err := f.sync.Upsert(fresh)
			assert.NoError(t, err)
		}()
		wg.Wait()

		require.True(t, slices.Contains(f.sync.Keys(), fresh), "trial %d: %s on disk but not indexed", trial, fresh)
	}
	assert.Len(t, f.search(t, "freshly"), 20)
}

func TestReconcile_StaleReadDoesNotOverwriteNewerContent(t *testing.T) {
	f := newFixture(t)
	for i := range 500 {
		f.write(t, fmt.Sprintf("bulk/%03d.txt", i), "bulk")
	}
	p := f.write(t, "doc.txt", "original")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.sync.Reconcile(context.Background(), f.root)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, os.WriteFile(p, []byte("revised"), 0o644))
		_, err := f.sync.Upsert(p)
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Len(t, f.search(t, "revised"), 1)
	assert.Empty(t, f.search(t, "original"))
}
