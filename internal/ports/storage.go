// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

// DocumentLog persists committed documents for the in-memory index engine.
// The backing store (bbolt) is root-scoped: each index ID gets its own file.
// Concurrent reads are safe; writes are serialized by the adapter.
//
// Crash safety: Apply must be transactional. A crash mid-write must not
// corrupt previously committed data.
type DocumentLog interface {
	// Apply writes a batch of upserts and deletes in a single transaction.
	// Deleting an absent key is not an error.
	Apply(upserts []Document, deletes []string) error

	// Load returns every persisted document. Returns an empty slice for a
	// fresh log.
	Load() ([]Document, error)

	// Clear removes every persisted document. Idempotent.
	Clear() error

	// Close releases the underlying file.
	Close() error
}
