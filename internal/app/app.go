// Package app wires the adapters and domain logic together and manages the
// lifecycle of a lucid process: create, start, stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/corey/lucid/internal/adapters/bbolt"
	"github.com/corey/lucid/internal/adapters/bleve"
	fsw "github.com/corey/lucid/internal/adapters/fsnotify"
	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/config"
	"github.com/corey/lucid/internal/domain/change"
	"github.com/corey/lucid/internal/domain/index"
	"github.com/corey/lucid/internal/domain/indexsync"
	"github.com/corey/lucid/internal/domain/refresh"
	"github.com/corey/lucid/internal/ports"
)

// watchQueryLimit caps keyword-watch result lists.
const watchQueryLimit = 100

// App is the top-level container wiring all components together.
type App struct {
	Root   string
	Paths  *Paths
	Engine string

	Store    ports.IndexStore
	Sync     *indexsync.Synchronizer
	Refresh  *refresh.Coordinator
	Watcher  *fsw.Watcher
	Notifier *Notifier
	Server   *socket.Server // nil unless Config.Serve

	settings *config.Config
	docLog   *bbolt.Store // memory engine only
	cache    *lru.Cache[cacheKey, []ports.Hit]
	logger   *slog.Logger

	mu       sync.Mutex
	started  time.Time
	running  bool
	stopOnce sync.Once
	stopErr  error
}

// Config holds initialization parameters for the App.
type Config struct {
	Settings *config.Config
	Logger   *slog.Logger
	Observer ports.Observer // optional, registered on the notifier
	Serve    bool           // start the socket server in Start
}

// New creates an App with all dependencies wired. Nothing runs until Start.
func New(cfg Config) (*App, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("%w: app: nil settings", ports.ErrConfig)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	root, err := filepath.Abs(cfg.Settings.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: root: %w", ports.ErrConfig, err)
	}
	paths := NewPaths(cfg.Settings.DataDir, root)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("%w: data dir: %w", ports.ErrConfig, err)
	}

	a := &App{
		Root:     root,
		Paths:    paths,
		Engine:   cfg.Settings.Engine,
		Notifier: NewNotifier(logger),
		settings: cfg.Settings,
		logger:   logger.With("component", "app"),
	}
	if err := a.openEngine(logger); err != nil {
		return nil, err
	}

	classifier := change.NewClassifier(change.ClassifierOptions{
		Root:   root,
		Filter: change.NewExtensionFilter(cfg.Settings.Extensions),
		Ignore: cfg.Settings.Ignore,
		Logger: logger.With("component", "classifier"),
	})
	a.Sync, err = indexsync.New(indexsync.Options{
		Store:        a.Store,
		Classifier:   classifier,
		MaxFileBytes: cfg.Settings.MaxFileBytes,
		Workers:      cfg.Settings.Workers,
		Logger:       logger,
	})
	if err != nil {
		a.closeEngine()
		return nil, err
	}
	a.Refresh, err = refresh.New(a.Store, logger)
	if err != nil {
		a.closeEngine()
		return nil, err
	}
	a.cache, err = lru.New[cacheKey, []ports.Hit](cfg.Settings.QueryCacheSize)
	if err != nil {
		a.Refresh.Close()
		a.closeEngine()
		return nil, fmt.Errorf("%w: query cache: %w", ports.ErrConfig, err)
	}
	a.Watcher, err = fsw.NewWatcher(fsw.Options{
		Classifier:   classifier,
		StopTimeout:  cfg.Settings.StopTimeout,
		Logger:       logger,
		OnDirRemoved: a.onDirRemoved,
		OnOverflow:   a.onOverflow,
	})
	if err != nil {
		a.Refresh.Close()
		a.closeEngine()
		return nil, err
	}
	a.Notifier.Register(cfg.Observer)
	if cfg.Serve {
		a.Server = socket.NewServer(a, socket.SocketPath(root), logger)
	}
	return a, nil
}

func (a *App) openEngine(logger *slog.Logger) error {
	switch a.Engine {
	case config.EngineBleve:
		store, err := bleve.Open(a.Paths.Bleve, logger)
		if err != nil {
			return err
		}
		a.Store = store
	default:
		db, err := bbolt.NewStore(a.Paths.DB)
		if err != nil {
			return fmt.Errorf("%w: %w", ports.ErrIndexStore, err)
		}
		if prev, err := db.Root(); err == nil && prev != "" && prev != a.Root {
			a.logger.Warn("index was built for another root", "index", a.Paths.DB, "recorded", prev, "root", a.Root)
		}
		if err := db.SetRoot(a.Root); err != nil {
			db.Close()
			return fmt.Errorf("%w: %w", ports.ErrIndexStore, err)
		}
		store, err := index.NewMemStore(index.MemStoreOptions{Log: db, Logger: logger})
		if err != nil {
			db.Close()
			return err
		}
		a.docLog = db
		a.Store = store
	}
	return nil
}

// closeEngine closes the store. The memory engine closes its document log.
func (a *App) closeEngine() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// Start reconciles the index with the tree, then starts the watch loop
// and, when configured, the socket server.
func (a *App) Start(ctx context.Context) error {
	res, err := a.Sync.Reconcile(ctx, a.Root)
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	a.logger.Info("initial scan", "scanned", res.Scanned, "upserted", res.Upserted,
		"unchanged", res.Unchanged, "deleted", res.Deleted, "skipped", res.Skipped)

	if err := a.Watcher.Watch(a.Root, a.onChange); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	if a.Server != nil {
		if err := a.Server.Start(); err != nil {
			a.Watcher.Stop()
			return fmt.Errorf("start server: %w", err)
		}
	}
	a.mu.Lock()
	a.started = time.Now()
	a.running = true
	a.mu.Unlock()
	return nil
}

// Done is closed when the watch loop has exited.
func (a *App) Done() <-chan struct{} {
	return a.Watcher.Done()
}

// Stop shuts everything down: watcher, server, snapshots, engine. A watch
// loop that misses the stop timeout is reported but does not block the
// rest of the shutdown. Safe to call multiple times.
func (a *App) Stop() error {
	a.stopOnce.Do(func() {
		var errs []error
		if err := a.Notifier.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := a.Watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
		if a.Server != nil {
			if err := a.Server.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		a.Refresh.Close()
		if err := a.closeEngine(); err != nil {
			errs = append(errs, err)
		}
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		a.stopErr = errors.Join(errs...)
		a.logger.Info("stopped", "root", a.Root)
	})
	return a.stopErr
}
