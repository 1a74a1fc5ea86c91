package ports

import "context"

// Document is the unit stored in the index. Key is the absolute cleaned path
// of the file; Fingerprint is a hex content hash used to skip no-op upserts.
type Document struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Hit is a ranked search result.
type Hit struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Content string  `json:"content,omitempty"`
	Preview string  `json:"preview,omitempty"`
}

// Snapshot is a point-in-time view of committed index content. Handles are
// never mutated; a newer commit produces a newer snapshot.
type Snapshot interface {
	// Generation increases with every commit that changed the index.
	Generation() uint64
}

// IndexStore is the search-engine substrate. Writes become visible to
// OpenSnapshot only after Commit. Implementations must be safe for
// concurrent use; a Commit happens-before any OpenSnapshot that observes it.
type IndexStore interface {
	// UpsertDocument replaces the document under doc.Key, or inserts it.
	UpsertDocument(doc Document) error

	// DeleteDocument removes the document under key. Absent keys are a no-op.
	DeleteDocument(key string) error

	// Commit publishes all pending upserts and deletes.
	Commit() error

	// HasChangedSince reports whether a commit has happened after snap was
	// opened.
	HasChangedSince(snap Snapshot) (bool, error)

	// OpenSnapshot returns a handle on the latest committed state.
	OpenSnapshot() (Snapshot, error)

	// CloseSnapshot releases a handle. Searching a closed handle returns
	// ErrSnapshotClosed. Closing twice is a no-op.
	CloseSnapshot(snap Snapshot) error

	// Search runs query against snap and returns at most limit hits ordered
	// by descending score.
	Search(ctx context.Context, snap Snapshot, query string, limit int) ([]Hit, error)

	// Fingerprints returns key -> fingerprint for every committed document.
	Fingerprints() (map[string]string, error)

	// Close releases the engine.
	Close() error
}
