package bleve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/lucid/internal/ports"
)

// =============================================================================
// Bleve IndexStore: commit visibility, upsert-by-key, generations
// =============================================================================

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(key, content string) ports.Document {
	return ports.Document{Key: key, Name: filepath.Base(key), Path: key, Content: content, Fingerprint: "fp-" + content}
}

func search(t *testing.T, s *Store, q string) []ports.Hit {
	t.Helper()
	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = s.CloseSnapshot(snap) }()
	hits, err := s.Search(context.Background(), snap, q, 10)
	require.NoError(t, err)
	return hits
}

func TestStore_HelloGoodbyeDelete(t *testing.T) {
	s := newMemStore(t)

	require.NoError(t, s.UpsertDocument(doc("/r/a.txt", "hello world")))
	require.NoError(t, s.Commit())
	hits := search(t, s, "hello")
	require.Len(t, hits, 1)
	assert.Equal(t, "a.txt", hits[0].Name)
	assert.Equal(t, "/r/a.txt", hits[0].Path)
	assert.Equal(t, "hello world", hits[0].Content)

	require.NoError(t, s.UpsertDocument(doc("/r/a.txt", "goodbye")))
	require.NoError(t, s.Commit())
	assert.Empty(t, search(t, s, "hello"))
	assert.Len(t, search(t, s, "goodbye"), 1)

	require.NoError(t, s.DeleteDocument("/r/a.txt"))
	require.NoError(t, s.Commit())
	assert.Empty(t, search(t, s, "goodbye"))
}

func TestStore_UncommittedInvisible(t *testing.T) {
	s := newMemStore(t)
	require.NoError(t, s.UpsertDocument(doc("/r/a.txt", "pending")))
	assert.Empty(t, search(t, s, "pending"))

	n, err := s.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_GenerationTracksCommits(t *testing.T) {
	s := newMemStore(t)
	snap, err := s.OpenSnapshot()
	require.NoError(t, err)

	require.NoError(t, s.Commit())
	changed, err := s.HasChangedSince(snap)
	require.NoError(t, err)
	assert.False(t, changed, "empty commit keeps the generation")

	require.NoError(t, s.UpsertDocument(doc("/r/a.txt", "x")))
	require.NoError(t, s.Commit())
	changed, err = s.HasChangedSince(snap)
	require.NoError(t, err)
	assert.True(t, changed)

	next, err := s.OpenSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.Generation()+1, next.Generation())
}

func TestStore_ClosedSnapshot(t *testing.T) {
	s := newMemStore(t)
	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	require.NoError(t, s.CloseSnapshot(snap))
	_, err = s.Search(context.Background(), snap, "x", 10)
	assert.ErrorIs(t, err, ports.ErrSnapshotClosed)
}

func TestStore_Fingerprints(t *testing.T) {
	s := newMemStore(t)
	require.NoError(t, s.UpsertDocument(doc("/r/a.txt", "one")))
	require.NoError(t, s.UpsertDocument(doc("/r/b.txt", "two")))
	require.NoError(t, s.Commit())

	fps, err := s.Fingerprints()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/r/a.txt": "fp-one", "/r/b.txt": "fp-two"}, fps)
}

func TestStore_PersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.bleve")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpsertDocument(doc("/r/a.txt", "durable text")))
	require.NoError(t, s.Commit())
	require.NoError(t, s.Close())

	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()
	assert.Len(t, search(t, s2, "durable"), 1)
}

func TestStore_ClosedStoreRejectsWrites(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.UpsertDocument(doc("/r/a.txt", "x")), ports.ErrIndexStore)
	_, err = s.OpenSnapshot()
	assert.ErrorIs(t, err, ports.ErrIndexStore)
}

func TestStore_OldSnapshotIsolatedFromLaterCommits(t *testing.T) {
	for name, path := range map[string]string{
		"memory": "",
		"disk":   filepath.Join(t.TempDir(), "idx.bleve"),
	} {
		t.Run(name, func(t *testing.T) {
			s, err := Open(path, nil)
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.UpsertDocument(doc("/r/a.txt", "alpha")))
			require.NoError(t, s.Commit())
			old, err := s.OpenSnapshot()
			require.NoError(t, err)
			defer func() { _ = s.CloseSnapshot(old) }()

			require.NoError(t, s.UpsertDocument(doc("/r/a.txt", "beta")))
			require.NoError(t, s.UpsertDocument(doc("/r/b.txt", "beta too")))
			require.NoError(t, s.Commit())

			ctx := context.Background()
			hits, err := s.Search(ctx, old, "beta", 10)
			require.NoError(t, err)
			assert.Empty(t, hits, "old snapshot must not see the later batch")

			hits, err = s.Search(ctx, old, "alpha", 10)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "alpha", hits[0].Content)

			assert.Len(t, search(t, s, "beta"), 2)
			assert.Empty(t, search(t, s, "alpha"))
		})
	}
}

func TestStore_CloseSnapshotTwice(t *testing.T) {
	s := newMemStore(t)
	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	require.NoError(t, s.CloseSnapshot(snap))
	require.NoError(t, s.CloseSnapshot(snap))
}

func TestStore_CloseReleasesOpenSnapshots(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	snap, err := s.OpenSnapshot()
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = s.Search(context.Background(), snap, "x", 10)
	assert.ErrorIs(t, err, ports.ErrSnapshotClosed)
	require.NoError(t, s.CloseSnapshot(snap))
}

func TestStore_HitsRankedByScore(t *testing.T) {
	s := newMemStore(t)
	require.NoError(t, s.UpsertDocument(doc("/r/once.txt", "kiwi apple pear plum fig")))
	require.NoError(t, s.UpsertDocument(doc("/r/many.txt", "kiwi kiwi kiwi")))
	require.NoError(t, s.Commit())

	hits := search(t, s, "kiwi")
	require.Len(t, hits, 2)
	assert.Equal(t, "/r/many.txt", hits[0].Key)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}
