package ports

// Watcher monitors a root directory recursively and delivers classified
// change records. Only one Watch call should be active at a time.
type Watcher interface {
	// Watch registers root and every directory below it, then starts the
	// watch loop. onChange is called from the loop goroutine, never
	// concurrently with itself. Returns an error wrapping ErrConfig if root
	// doesn't exist or is not a directory; no goroutine is started then.
	Watch(root string, onChange func(ChangeRecord)) error

	// Stop ends monitoring and releases all watch handles. It waits for the
	// loop to exit for a bounded time and returns ErrStopTimeout if it did
	// not. Safe to call multiple times.
	Stop() error

	// Done is closed when the loop exits, either after Stop or because the
	// last watched directory disappeared.
	Done() <-chan struct{}
}

// Observer receives change records and keyword-watch results. Delivery is
// from the watch loop goroutine; marshaling onto another execution context
// is the observer's job.
type Observer interface {
	OnChange(rec ChangeRecord)
	OnSearchResults(query string, hits []Hit)
}
