package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/corey/lucid/internal/ports"
)

// MemStore is the default ports.IndexStore. Committed state lives in an
// immutable view; UpsertDocument and DeleteDocument stage changes that
// Commit folds into a fresh view. When a DocumentLog is attached, Commit
// persists the batch before publishing it.
type MemStore struct {
	log    ports.DocumentLog
	logger *slog.Logger

	mu      sync.Mutex // guards pending and serializes Commit
	pending map[string]*indexedDoc
	closed  bool

	current atomic.Pointer[view]
}

// MemStoreOptions configures NewMemStore.
type MemStoreOptions struct {
	// Log persists committed documents. Optional.
	Log    ports.DocumentLog
	Logger *slog.Logger
}

// indexedDoc is a document with its term frequencies. A nil doc in the
// pending map marks a delete.
type indexedDoc struct {
	doc    ports.Document
	tf     map[string]int
	length int
}

// view is one committed generation. Never mutated after publish.
type view struct {
	gen  uint64
	docs map[string]*indexedDoc
}

type snapshot struct {
	store  *MemStore
	v      *view
	closed atomic.Bool
}

func (s *snapshot) Generation() uint64 { return s.v.gen }

// NewMemStore opens the engine, replaying the attached log if any.
func NewMemStore(opts MemStoreOptions) (*MemStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &MemStore{
		log:     opts.Log,
		logger:  logger.With("component", "memstore"),
		pending: make(map[string]*indexedDoc),
	}

	initial := &view{gen: 1, docs: make(map[string]*indexedDoc)}
	if s.log != nil {
		docs, err := s.log.Load()
		if err != nil {
			return nil, fmt.Errorf("%w: load document log: %w", ports.ErrIndexStore, err)
		}
		for _, d := range docs {
			initial.docs[d.Key] = analyze(d)
		}
		s.logger.Debug("document log loaded", "documents", len(docs))
	}
	s.current.Store(initial)
	return s, nil
}

func analyze(d ports.Document) *indexedDoc {
	toks := Tokenize(d.Name + " " + d.Content)
	tf := make(map[string]int, len(toks))
	for _, t := range toks {
		tf[t]++
	}
	return &indexedDoc{doc: d, tf: tf, length: len(toks)}
}

// UpsertDocument stages doc under doc.Key, replacing any earlier staged op
// for the same key.
func (s *MemStore) UpsertDocument(doc ports.Document) error {
	if doc.Key == "" {
		return fmt.Errorf("%w: upsert: empty key", ports.ErrIndexStore)
	}
	idoc := analyze(doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: upsert: store closed", ports.ErrIndexStore)
	}
	s.pending[doc.Key] = idoc
	return nil
}

// DeleteDocument stages a delete. Deleting an absent key is a no-op at commit.
func (s *MemStore) DeleteDocument(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: delete: store closed", ports.ErrIndexStore)
	}
	s.pending[key] = nil
	return nil
}

// Commit publishes staged changes as a new generation. A commit that changes
// nothing keeps the current generation, so readers are not forced to reopen.
// If persisting fails the staged ops are kept for the next Commit.
func (s *MemStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: commit: store closed", ports.ErrIndexStore)
	}
	if len(s.pending) == 0 {
		return nil
	}

	cur := s.current.Load()
	var upserts []ports.Document
	var deletes []string
	for key, idoc := range s.pending {
		if idoc == nil {
			if _, ok := cur.docs[key]; ok {
				deletes = append(deletes, key)
			}
			continue
		}
		upserts = append(upserts, idoc.doc)
	}

	if len(upserts) == 0 && len(deletes) == 0 {
		clear(s.pending)
		return nil
	}

	if s.log != nil {
		if err := s.log.Apply(upserts, deletes); err != nil {
			return fmt.Errorf("%w: commit: %w", ports.ErrIndexStore, err)
		}
	}

	next := &view{gen: cur.gen + 1, docs: make(map[string]*indexedDoc, len(cur.docs)+len(upserts))}
	for k, d := range cur.docs {
		next.docs[k] = d
	}
	for key, idoc := range s.pending {
		if idoc == nil {
			delete(next.docs, key)
		} else {
			next.docs[key] = idoc
		}
	}
	clear(s.pending)
	s.current.Store(next)

	s.logger.Debug("commit", "generation", next.gen, "upserts", len(upserts), "deletes", len(deletes), "documents", len(next.docs))
	return nil
}

// HasChangedSince reports whether snap's generation is behind the latest.
func (s *MemStore) HasChangedSince(snap ports.Snapshot) (bool, error) {
	sn, err := s.own(snap)
	if err != nil {
		return false, err
	}
	return s.current.Load().gen != sn.v.gen, nil
}

// OpenSnapshot returns a handle pinned to the latest committed view.
func (s *MemStore) OpenSnapshot() (ports.Snapshot, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: open snapshot: store closed", ports.ErrIndexStore)
	}
	return &snapshot{store: s, v: s.current.Load()}, nil
}

// CloseSnapshot marks the handle released. The view itself is reclaimed by
// the garbage collector once no handle references it.
func (s *MemStore) CloseSnapshot(snap ports.Snapshot) error {
	sn, err := s.own(snap)
	if err != nil {
		return err
	}
	sn.closed.Store(true)
	return nil
}

// Search implements ports.IndexStore.
func (s *MemStore) Search(ctx context.Context, snap ports.Snapshot, query string, limit int) ([]ports.Hit, error) {
	sn, err := s.own(snap)
	if err != nil {
		return nil, err
	}
	if sn.closed.Load() {
		return nil, ports.ErrSnapshotClosed
	}
	return search(ctx, sn.v, query, limit)
}

// Fingerprints returns the fingerprint of every committed document.
func (s *MemStore) Fingerprints() (map[string]string, error) {
	v := s.current.Load()
	out := make(map[string]string, len(v.docs))
	for k, d := range v.docs {
		out[k] = d.doc.Fingerprint
	}
	return out, nil
}

// Documents returns the committed documents of the latest view, unordered.
func (s *MemStore) Documents() []ports.Document {
	v := s.current.Load()
	out := make([]ports.Document, 0, len(v.docs))
	for _, d := range v.docs {
		out = append(out, d.doc)
	}
	return out
}

// Close releases the document log. Open snapshots stay searchable.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			return fmt.Errorf("%w: close document log: %w", ports.ErrIndexStore, err)
		}
	}
	return nil
}

func (s *MemStore) own(snap ports.Snapshot) (*snapshot, error) {
	sn, ok := snap.(*snapshot)
	if !ok || sn == nil || sn.store != s {
		return nil, fmt.Errorf("%w: foreign snapshot %T", ports.ErrIndexStore, snap)
	}
	return sn, nil
}
