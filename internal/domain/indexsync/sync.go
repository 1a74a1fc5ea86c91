// Package indexsync applies file content to an IndexStore with
// upsert-by-key semantics. The document key is the absolute cleaned path, so
// two files sharing a base name in different directories never collide.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/corey/lucid/internal/domain/change"
	"github.com/corey/lucid/internal/ports"
)

// DefaultMaxFileBytes skips files larger than 1 MiB.
const DefaultMaxFileBytes = 1 << 20

// DefaultWorkers bounds reconcile read parallelism.
const DefaultWorkers = 4

// Options configures a Synchronizer.
type Options struct {
	Store        ports.IndexStore
	Classifier   *change.Classifier // extension filter and ignore globs for Reconcile
	MaxFileBytes int64
	Workers      int
	Logger       *slog.Logger
}

// Synchronizer mutates the index store. Every mutating call ends with a
// commit, so its effect is visible to the next refresh.
type Synchronizer struct {
	store      ports.IndexStore
	classifier *change.Classifier
	maxBytes   int64
	workers    int
	logger     *slog.Logger

	writeMu sync.Mutex // serializes mutations, a whole Reconcile pass included

	mu           sync.Mutex // guards fingerprints
	fingerprints map[string]string
}

// ReconcileResult summarizes one Reconcile pass.
type ReconcileResult struct {
	Scanned   int
	Upserted  int
	Unchanged int
	Deleted   int
	Skipped   int
}

// New creates a Synchronizer seeded with the store's committed fingerprints.
func New(opts Options) (*Synchronizer, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: indexsync: nil store", ports.ErrConfig)
	}
	fps, err := opts.Store.Fingerprints()
	if err != nil {
		return nil, fmt.Errorf("%w: read fingerprints: %w", ports.ErrIndexStore, err)
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = change.NewClassifier(change.ClassifierOptions{})
	}
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synchronizer{
		store:        opts.Store,
		classifier:   classifier,
		maxBytes:     maxBytes,
		workers:      workers,
		logger:       logger.With("component", "indexsync"),
		fingerprints: fps,
	}, nil
}

// Key returns the document key for path.
func Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Fingerprint is the hex xxhash64 of data.
func Fingerprint(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// errTooLarge marks a file over the size limit. Not surfaced to callers.
var errTooLarge = errors.New("file too large")

// load reads path into a Document. Missing or unreadable files wrap
// ErrTransient.
func (s *Synchronizer) load(path string) (ports.Document, error) {
	key, err := Key(path)
	if err != nil {
		return ports.Document{}, fmt.Errorf("%w: %s: %w", ports.ErrTransient, path, err)
	}
	info, err := os.Stat(key)
	if err != nil {
		return ports.Document{}, fmt.Errorf("%w: stat %s: %w", ports.ErrTransient, key, err)
	}
	if info.IsDir() {
		return ports.Document{}, fmt.Errorf("%w: %s is a directory", ports.ErrTransient, key)
	}
	if info.Size() > s.maxBytes {
		return ports.Document{Key: key}, errTooLarge
	}
	data, err := os.ReadFile(key)
	if err != nil {
		return ports.Document{}, fmt.Errorf("%w: read %s: %w", ports.ErrTransient, key, err)
	}
	// Content is opaque text; invalid UTF-8 is kept as-is.
	return ports.Document{
		Key:         key,
		Name:        filepath.Base(key),
		Path:        key,
		Content:     string(data),
		Fingerprint: Fingerprint(data),
	}, nil
}

// Upsert indexes the current content of path and commits. It reports whether
// the index changed; identical content is skipped without a commit. A file
// over the size limit is dropped from the index.
func (s *Synchronizer) Upsert(path string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, err := s.load(path)
	if errors.Is(err, errTooLarge) {
		s.logger.Debug("skipping large file", "path", doc.Key, "max_bytes", s.maxBytes)
		return s.remove(doc.Key)
	}
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fp, ok := s.fingerprints[doc.Key]; ok && fp == doc.Fingerprint {
		return false, nil
	}
	if err := s.store.UpsertDocument(doc); err != nil {
		return false, err
	}
	if err := s.store.Commit(); err != nil {
		return false, err
	}
	s.fingerprints[doc.Key] = doc.Fingerprint
	return true, nil
}

// Remove deletes key and commits. An absent key is a no-op.
func (s *Synchronizer) Remove(key string) (bool, error) {
	k, err := Key(key)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ports.ErrTransient, key, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.remove(k)
}

// remove deletes an absolute key. Callers hold writeMu.
func (s *Synchronizer) remove(k string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fingerprints[k]; !ok {
		return false, nil
	}
	if err := s.store.DeleteDocument(k); err != nil {
		return false, err
	}
	if err := s.store.Commit(); err != nil {
		return false, err
	}
	delete(s.fingerprints, k)
	return true, nil
}

// RemoveTree deletes every document under dir in one commit and returns the
// number removed.
func (s *Synchronizer) RemoveTree(dir string) (int, error) {
	d, err := Key(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ports.ErrTransient, dir, err)
	}
	prefix := d + string(filepath.Separator)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.fingerprints {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	for _, k := range keys {
		if err := s.store.DeleteDocument(k); err != nil {
			return 0, err
		}
	}
	if err := s.store.Commit(); err != nil {
		return 0, err
	}
	for _, k := range keys {
		delete(s.fingerprints, k)
	}
	s.logger.Info("purged directory", "dir", d, "documents", len(keys))
	return len(keys), nil
}

// Apply routes a change record to Upsert or Remove.
func (s *Synchronizer) Apply(rec ports.ChangeRecord) (bool, error) {
	switch rec.Kind {
	case ports.Created, ports.Modified:
		return s.Upsert(rec.AbsolutePath)
	case ports.Deleted:
		return s.Remove(rec.AbsolutePath)
	default:
		return false, fmt.Errorf("indexsync: unknown event kind %d", rec.Kind)
	}
}

// Len returns the number of indexed documents.
func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fingerprints)
}

// Keys returns the indexed keys, unordered.
func (s *Synchronizer) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.fingerprints))
	for k := range s.fingerprints {
		out = append(out, k)
	}
	return out
}

// Reconcile brings the index in line with the tree under root: new and
// changed files are upserted, keys under root with no file behind them are
// deleted. Files are read in parallel and the result is committed once.
// Other mutations wait for the pass to finish.
func (s *Synchronizer) Reconcile(ctx context.Context, root string) (ReconcileResult, error) {
	var res ReconcileResult
	absRoot, err := Key(root)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %w", ports.ErrConfig, root, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			return nil // skip unreadable
		}
		if path != absRoot && s.classifier.Ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if s.classifier.Filter().Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("%w: walk %s: %w", ports.ErrConfig, absRoot, err)
	}
	res.Scanned = len(paths)

	docs := make([]*ports.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := s.load(p)
			if errors.Is(err, errTooLarge) || errors.Is(err, ports.ErrTransient) {
				s.logger.Debug("reconcile skip", "path", p, "err", err)
				return nil
			}
			if err != nil {
				return err
			}
			docs[i] = &doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(docs))
	next := make(map[string]string)
	for _, doc := range docs {
		if doc == nil {
			res.Skipped++
			continue
		}
		seen[doc.Key] = true
		if fp, ok := s.fingerprints[doc.Key]; ok && fp == doc.Fingerprint {
			res.Unchanged++
			continue
		}
		if err := s.store.UpsertDocument(*doc); err != nil {
			return res, err
		}
		next[doc.Key] = doc.Fingerprint
		res.Upserted++
	}

	prefix := absRoot + string(filepath.Separator)
	var gone []string
	for k := range s.fingerprints {
		if strings.HasPrefix(k, prefix) && !seen[k] {
			if err := s.store.DeleteDocument(k); err != nil {
				return res, err
			}
			gone = append(gone, k)
		}
	}
	res.Deleted = len(gone)

	if res.Upserted == 0 && res.Deleted == 0 {
		return res, nil
	}
	if err := s.store.Commit(); err != nil {
		return res, err
	}
	for k, fp := range next {
		s.fingerprints[k] = fp
	}
	for _, k := range gone {
		delete(s.fingerprints, k)
	}
	s.logger.Info("reconciled", "root", absRoot, "scanned", res.Scanned,
		"upserted", res.Upserted, "deleted", res.Deleted, "skipped", res.Skipped)
	return res, nil
}
