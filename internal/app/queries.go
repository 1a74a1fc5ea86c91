package app

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/corey/lucid/internal/adapters/ahocorasick"
	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/domain/index"
	"github.com/corey/lucid/internal/ports"
)

// cacheKey identifies a query result. Generation is part of the key, so a
// commit makes older entries unreachable.
type cacheKey struct {
	gen   uint64
	query string
	limit int
}

// QueryResult is a ranked, previewed result list.
type QueryResult struct {
	Hits       []ports.Hit
	Generation uint64
	Cached     bool
}

// Query refreshes the searcher, then runs query against the fresh snapshot.
// Hits carry a preview instead of full content. The returned slice is the
// caller's; the cache keeps its own copy.
func (a *App) Query(ctx context.Context, query string, limit int) (QueryResult, error) {
	if limit <= 0 {
		limit = index.DefaultLimit
	}
	lease, err := a.Refresh.Acquire()
	if err != nil {
		return QueryResult{}, err
	}
	defer lease.Release()

	key := cacheKey{gen: lease.Generation(), query: strings.TrimSpace(query), limit: limit}
	if hits, ok := a.cache.Get(key); ok {
		return QueryResult{Hits: slices.Clone(hits), Generation: key.gen, Cached: true}, nil
	}

	hits, err := a.Store.Search(ctx, lease.Snapshot(), query, limit)
	if err != nil {
		return QueryResult{}, err
	}
	matcher := ahocorasick.NewMatcher(index.Terms(query))
	for i := range hits {
		hits[i].Preview = matcher.Preview(hits[i].Content, a.settings.PreviewChars)
		hits[i].Content = ""
	}
	a.cache.Add(key, slices.Clone(hits))
	return QueryResult{Hits: hits, Generation: key.gen}, nil
}

// Search implements socket.AppQueries.
func (a *App) Search(ctx context.Context, query string, limit int) (socket.SearchResult, error) {
	start := time.Now()
	res, err := a.Query(ctx, query, limit)
	if err != nil {
		return socket.SearchResult{}, err
	}
	out := socket.SearchResult{
		Hits:       make([]socket.SearchHit, 0, len(res.Hits)),
		Count:      len(res.Hits),
		Generation: res.Generation,
		Cached:     res.Cached,
		Elapsed:    time.Since(start).Round(time.Microsecond).String(),
	}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, socket.SearchHit{Name: h.Name, Path: h.Path, Score: h.Score, Preview: h.Preview})
	}
	return out, nil
}

// Health implements socket.AppQueries.
func (a *App) Health() socket.HealthResult {
	a.mu.Lock()
	running, started := a.running, a.started
	a.mu.Unlock()

	status, uptime := "idle", ""
	if running {
		status = "ok"
		uptime = time.Since(started).Round(time.Second).String()
	}
	var updated string
	if a.docLog != nil {
		if t, err := a.docLog.Updated(); err == nil && !t.IsZero() {
			updated = t.Local().Format(time.RFC3339)
		}
	}
	return socket.HealthResult{
		Status:      status,
		Root:        a.Root,
		IndexID:     a.Paths.ID,
		Engine:      a.Engine,
		Documents:   a.Sync.Len(),
		WatchedDirs: a.Watcher.Registry().Len(),
		Generation:  a.Refresh.Generation(),
		Reopens:     a.Refresh.Reopens(),
		Uptime:      uptime,
		Updated:     updated,
	}
}

// Files implements socket.AppQueries. glob is a doublestar pattern matched
// against the slash path relative to the root; name is a substring of the
// base name. Empty filters match everything. Paths are sorted.
func (a *App) Files(glob, name string) (socket.FilesResult, error) {
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return socket.FilesResult{}, fmt.Errorf("%w: bad glob %q", ports.ErrConfig, glob)
	}
	files := []string{}
	for _, key := range a.Sync.Keys() {
		if name != "" && !strings.Contains(filepath.Base(key), name) {
			continue
		}
		if glob != "" {
			rel, err := filepath.Rel(a.Root, key)
			if err != nil {
				continue
			}
			if ok, _ := doublestar.Match(glob, filepath.ToSlash(rel)); !ok {
				continue
			}
		}
		files = append(files, key)
	}
	sort.Strings(files)
	return socket.FilesResult{Files: files, Count: len(files)}, nil
}

// Reindex implements socket.AppQueries.
func (a *App) Reindex(ctx context.Context) (socket.ReindexResult, error) {
	start := time.Now()
	res, err := a.Sync.Reconcile(ctx, a.Root)
	if err != nil {
		return socket.ReindexResult{}, err
	}
	return socket.ReindexResult{
		Scanned:   res.Scanned,
		Upserted:  res.Upserted,
		Unchanged: res.Unchanged,
		Deleted:   res.Deleted,
		Skipped:   res.Skipped,
		ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}
