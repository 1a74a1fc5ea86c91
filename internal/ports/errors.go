package ports

import "errors"

// Error taxonomy. Concrete failures wrap one of these with fmt.Errorf("...: %w")
// so callers can branch with errors.Is.
var (
	// ErrConfig: invalid or missing root, bad settings. Reported before any
	// goroutine starts.
	ErrConfig = errors.New("config error")

	// ErrTransient: a file vanished or became unreadable between the event
	// and its processing. The single change is skipped.
	ErrTransient = errors.New("transient io error")

	// ErrWatchInvalidated: a watched directory became inaccessible.
	ErrWatchInvalidated = errors.New("watch invalidated")

	// ErrIndexStore: the index engine failed to commit, reopen or search.
	ErrIndexStore = errors.New("index store error")

	// ErrSnapshotClosed: a search was issued against a released snapshot.
	ErrSnapshotClosed = errors.New("snapshot closed")

	// ErrStopTimeout: the watch loop did not exit within the join timeout.
	ErrStopTimeout = errors.New("watch loop did not stop in time")
)
