package fsnotify

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/corey/lucid/internal/ports"
)

// Handle identifies one registered directory for the life of its watch.
type Handle uint64

// watchList is the subset of *fsnotify.Watcher the registry drives.
type watchList interface {
	Add(name string) error
	Remove(name string) error
}

// Registry maps watch handles to directories and back. Every registered
// directory has exactly one live handle. Safe for concurrent use.
type Registry struct {
	wl     watchList
	skip   func(path string) bool
	logger *slog.Logger

	mu       sync.Mutex
	next     Handle
	byHandle map[Handle]string
	byDir    map[string]Handle
}

// NewRegistry creates an empty registry. skip, if non-nil, prunes
// directories from recursive registration.
func NewRegistry(wl watchList, skip func(path string) bool, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		wl:       wl,
		skip:     skip,
		logger:   logger,
		byHandle: make(map[Handle]string),
		byDir:    make(map[string]Handle),
	}
}

// RegisterRecursively registers root and every directory below it and
// returns the regular files it found. Each directory is listed only after
// its watch is in place, so a file created while registration runs is
// either reported by the watch or returned here (possibly both).
//
// Fails with ErrConfig if root does not exist or is not a directory.
func (r *Registry) RegisterRecursively(root string) ([]string, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: watch root: %w", ports.ErrConfig, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: watch root %s is not a directory", ports.ErrConfig, root)
	}

	var files []string
	work := []string{root}
	for len(work) > 0 {
		dir := work[len(work)-1]
		work = work[:len(work)-1]

		if _, err := r.register(dir); err != nil {
			if dir == root {
				return nil, fmt.Errorf("%w: watch %s: %w", ports.ErrConfig, dir, err)
			}
			r.logger.Warn("watch add failed", "dir", dir, "err", err)
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			// vanished between Add and ReadDir; its Remove event cleans up
			r.logger.Debug("list dir failed", "dir", dir, "err", err)
			continue
		}
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			if r.skip != nil && r.skip(p) {
				continue
			}
			switch {
			case e.IsDir():
				work = append(work, p)
			case e.Type().IsRegular():
				files = append(files, p)
			}
		}
	}
	return files, nil
}

// register adds a single directory. Already-registered directories return
// their existing handle.
func (r *Registry) register(dir string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byDir[dir]; ok {
		return h, nil
	}
	if err := r.wl.Add(dir); err != nil {
		return 0, err
	}
	r.next++
	h := r.next
	r.byHandle[h] = dir
	r.byDir[dir] = h
	r.logger.Debug("watch added", "dir", dir, "handle", h, "active", len(r.byDir))
	return h, nil
}

// Unregister drops dir and every registered directory below it. It returns
// the directories removed, deepest first.
func (r *Registry) Unregister(dir string) []string {
	dir = filepath.Clean(dir)
	prefix := dir + string(filepath.Separator)

	r.mu.Lock()
	defer r.mu.Unlock()
	var gone []string
	for d := range r.byDir {
		if d == dir || strings.HasPrefix(d, prefix) {
			gone = append(gone, d)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(gone)))
	for _, d := range gone {
		h := r.byDir[d]
		delete(r.byDir, d)
		delete(r.byHandle, h)
		// The kernel usually dropped the watch already; the error is expected.
		_ = r.wl.Remove(d)
	}
	if len(gone) > 0 {
		r.logger.Debug("watch removed", "dir", dir, "count", len(gone), "active", len(r.byDir))
	}
	return gone
}

// Resolve maps an event path to the handle of the directory it originated
// from (its parent).
func (r *Registry) Resolve(path string) (Handle, string, bool) {
	parent := filepath.Dir(filepath.Clean(path))
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byDir[parent]
	return h, parent, ok
}

// IsRegistered reports whether dir itself is watched.
func (r *Registry) IsRegistered(dir string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byDir[filepath.Clean(dir)]
	return ok
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byDir)
}

// Dirs returns the registered directories, sorted.
func (r *Registry) Dirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byDir))
	for d := range r.byDir {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
