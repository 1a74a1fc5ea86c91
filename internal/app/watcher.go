package app

import (
	"context"

	"github.com/corey/lucid/internal/ports"
)

// onChange handles a classified change from the watch loop: the index is
// updated and committed, observers are told, and the keyword watch query
// (if any) is re-run. Failures are logged; the loop keeps going.
func (a *App) onChange(rec ports.ChangeRecord) {
	if _, err := a.Sync.Apply(rec); err != nil {
		a.logger.Warn("index update failed", "kind", rec.Kind.String(), "path", rec.AbsolutePath, "err", err)
	}
	a.Notifier.Notify(rec)
	a.runWatchQuery()
}

// runWatchQuery re-runs the configured keyword query and pushes the result
// list to observers.
func (a *App) runWatchQuery() {
	q := a.settings.WatchQuery
	if q == "" {
		return
	}
	res, err := a.Query(context.Background(), q, watchQueryLimit)
	if err != nil {
		a.logger.Warn("watch query failed", "query", q, "err", err)
		return
	}
	a.Notifier.NotifyResults(q, res.Hits)
}

// onDirRemoved purges documents below a directory whose watch was
// invalidated.
func (a *App) onDirRemoved(dir string) {
	n, err := a.Sync.RemoveTree(dir)
	if err != nil {
		a.logger.Warn("purge failed", "dir", dir, "err", err)
		return
	}
	if n > 0 {
		a.runWatchQuery()
	}
}

// onOverflow rescans the tree after the kernel dropped events.
func (a *App) onOverflow() {
	res, err := a.Sync.Reconcile(context.Background(), a.Root)
	if err != nil {
		a.logger.Warn("overflow rescan failed", "err", err)
		return
	}
	a.logger.Info("overflow rescan", "upserted", res.Upserted, "deleted", res.Deleted)
}
