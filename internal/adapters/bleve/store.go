// Package bleve implements ports.IndexStore on a Bleve index. Each Commit
// flushes the staged operations as one Bleve batch and bumps a generation
// counter.
//
// A snapshot holds an index.IndexReader taken under the commit lock, so a
// query on a superseded (still open) snapshot sees exactly the batches
// committed before it was opened.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/collector"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/corey/lucid/internal/ports"
)

// Field names in the Bleve document.
const (
	fieldName        = "name"
	fieldPath        = "path"
	fieldContent     = "content"
	fieldFingerprint = "fingerprint"
)

// DefaultLimit applies when a caller passes a non-positive limit.
const DefaultLimit = 10

// Store implements ports.IndexStore.
type Store struct {
	index  bleve.Index
	logger *slog.Logger

	mu      sync.Mutex // guards batch, closed and open
	batch   *bleve.Batch
	closed  bool
	gen     atomic.Uint64
	pending map[string]bool // keys staged for upsert or delete
	open    map[*snapshot]struct{}
}

type snapshot struct {
	store  *Store
	gen    uint64
	reader index.IndexReader
	closed atomic.Bool
}

// release closes the reader once.
func (s *snapshot) release() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.reader.Close(); err != nil {
		return fmt.Errorf("%w: close reader: %w", ports.ErrIndexStore, err)
	}
	return nil
}

func (s *snapshot) Generation() uint64 { return s.gen }

// buildIndexMapping maps name and content as analyzed text, path and
// fingerprint as keywords. Everything is stored so hits carry the document.
func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	kw.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldName, text)
	doc.AddFieldMappingsAt(fieldContent, text)
	doc.AddFieldMappingsAt(fieldPath, kw)
	doc.AddFieldMappingsAt(fieldFingerprint, kw)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Open opens the index at path, creating it if missing. An empty path gives
// a memory-only index.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	default:
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bleve open %q: %w", ports.ErrIndexStore, path, err)
	}
	s := &Store{
		index:   idx,
		logger:  logger.With("component", "bleve"),
		batch:   idx.NewBatch(),
		pending: make(map[string]bool),
		open:    make(map[*snapshot]struct{}),
	}
	s.gen.Store(1)
	return s, nil
}

// UpsertDocument stages doc. Bleve's Index replaces by ID.
func (s *Store) UpsertDocument(doc ports.Document) error {
	if doc.Key == "" {
		return fmt.Errorf("%w: upsert: empty key", ports.ErrIndexStore)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: upsert: index closed", ports.ErrIndexStore)
	}
	if err := s.batch.Index(doc.Key, map[string]interface{}{
		fieldName:        doc.Name,
		fieldPath:        doc.Path,
		fieldContent:     doc.Content,
		fieldFingerprint: doc.Fingerprint,
	}); err != nil {
		return fmt.Errorf("%w: stage %s: %w", ports.ErrIndexStore, doc.Key, err)
	}
	s.pending[doc.Key] = true
	return nil
}

// DeleteDocument stages a delete. Absent keys are a no-op in Bleve.
func (s *Store) DeleteDocument(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: delete: index closed", ports.ErrIndexStore)
	}
	s.batch.Delete(key)
	s.pending[key] = true
	return nil
}

// Commit applies the staged batch. An empty batch keeps the generation.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: commit: index closed", ports.ErrIndexStore)
	}
	if s.batch.Size() == 0 {
		return nil
	}
	if err := s.index.Batch(s.batch); err != nil {
		return fmt.Errorf("%w: commit batch: %w", ports.ErrIndexStore, err)
	}
	n := len(s.pending)
	s.batch.Reset()
	clear(s.pending)
	gen := s.gen.Add(1)
	s.logger.Debug("commit", "generation", gen, "ops", n)
	return nil
}

// HasChangedSince implements ports.IndexStore.
func (s *Store) HasChangedSince(snap ports.Snapshot) (bool, error) {
	sn, err := s.own(snap)
	if err != nil {
		return false, err
	}
	return s.gen.Load() != sn.gen, nil
}

// OpenSnapshot implements ports.IndexStore.
func (s *Store) OpenSnapshot() (ports.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: open snapshot: index closed", ports.ErrIndexStore)
	}
	adv, err := s.index.Advanced()
	if err != nil {
		return nil, fmt.Errorf("%w: open snapshot: %w", ports.ErrIndexStore, err)
	}
	r, err := adv.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: open snapshot reader: %w", ports.ErrIndexStore, err)
	}
	sn := &snapshot{store: s, gen: s.gen.Load(), reader: r}
	s.open[sn] = struct{}{}
	return sn, nil
}

// CloseSnapshot implements ports.IndexStore. Closing twice is a no-op.
func (s *Store) CloseSnapshot(snap ports.Snapshot) error {
	sn, err := s.own(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.open, sn)
	s.mu.Unlock()
	return sn.release()
}

// Search runs a match query over name and content against the snapshot's
// reader, best score first.
func (s *Store) Search(ctx context.Context, snap ports.Snapshot, q string, limit int) (_ []ports.Hit, err error) {
	sn, err := s.own(snap)
	if err != nil {
		return nil, err
	}
	if sn.closed.Load() {
		return nil, ports.ErrSnapshotClosed
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	content := query.NewMatchQuery(q)
	content.SetField(fieldContent)
	name := query.NewMatchQuery(q)
	name.SetField(fieldName)
	dq := query.NewDisjunctionQuery([]query.Query{content, name})

	searcher, err := dq.Searcher(ctx, sn.reader, s.index.Mapping(), blevesearch.SearcherOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: build searcher: %w", ports.ErrIndexStore, err)
	}
	defer func() {
		if cerr := searcher.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close searcher: %w", ports.ErrIndexStore, cerr)
		}
	}()

	coll := collector.NewTopNCollector(limit, 0, blevesearch.SortOrder{&blevesearch.SortScore{Desc: true}})
	if err := coll.Collect(ctx, searcher, sn.reader); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: search: %w", ports.ErrIndexStore, err)
	}

	matches := coll.Results()
	hits := make([]ports.Hit, 0, len(matches))
	for _, m := range matches {
		h, err := loadHit(sn.reader, m)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// loadHit reads the stored fields of a match from the same reader that
// scored it.
func loadHit(r index.IndexReader, m *blevesearch.DocumentMatch) (ports.Hit, error) {
	h := ports.Hit{Key: m.ID, Score: m.Score}
	d, err := r.Document(m.ID)
	if err != nil {
		return h, fmt.Errorf("%w: load %s: %w", ports.ErrIndexStore, m.ID, err)
	}
	if d == nil {
		return h, nil
	}
	d.VisitFields(func(f index.Field) {
		switch f.Name() {
		case fieldName:
			h.Name = string(f.Value())
		case fieldPath:
			h.Path = string(f.Value())
		case fieldContent:
			h.Content = string(f.Value())
		}
	})
	return h, nil
}

func getStringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// Fingerprints pages through every committed document.
func (s *Store) Fingerprints() (map[string]string, error) {
	const page = 1000
	out := make(map[string]string)
	for from := 0; ; from += page {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), page, from, false)
		req.Fields = []string{fieldFingerprint}
		res, err := s.index.Search(req)
		if err != nil {
			return nil, fmt.Errorf("%w: fingerprints: %w", ports.ErrIndexStore, err)
		}
		for _, h := range res.Hits {
			out[h.ID] = getStringField(h.Fields, fieldFingerprint)
		}
		if len(res.Hits) < page {
			return out, nil
		}
	}
}

// DocCount returns the number of committed documents.
func (s *Store) DocCount() (uint64, error) {
	return s.index.DocCount()
}

// Close flushes nothing; staged, uncommitted operations are dropped. Open
// snapshots are released first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for sn := range s.open {
		if err := sn.release(); err != nil {
			s.logger.Warn("release snapshot on close", "generation", sn.gen, "err", err)
		}
	}
	clear(s.open)
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("%w: bleve close: %w", ports.ErrIndexStore, err)
	}
	return nil
}

func (s *Store) own(snap ports.Snapshot) (*snapshot, error) {
	sn, ok := snap.(*snapshot)
	if !ok || sn == nil || sn.store != s {
		return nil, fmt.Errorf("%w: foreign snapshot %T", ports.ErrIndexStore, snap)
	}
	return sn, nil
}
