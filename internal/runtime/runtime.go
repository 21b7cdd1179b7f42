package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/rzbill/tide/internal/config"
	"github.com/rzbill/tide/internal/engine/pebbleengine"
	"github.com/rzbill/tide/internal/eventstore"
	"github.com/rzbill/tide/internal/monitor"
	pebblestore "github.com/rzbill/tide/internal/storage/pebble"
	"github.com/rzbill/tide/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Config  cfgpkg.Config
	Logger  log.Logger
	Monitor monitor.Monitor
}

// Runtime wires storage, the engine, and the event store for a single-node
// instance.
type Runtime struct {
	db     *pebblestore.DB
	engine *pebbleengine.Engine
	store  *eventstore.Store
	config cfgpkg.Config
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         pebblestore.ParseFsyncMode(opts.Config.Fsync),
		FsyncInterval: time.Duration(opts.Config.FsyncIntervalMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	eng, err := pebbleengine.Open(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	storeOpts := []eventstore.Option{
		eventstore.WithCachedEvents(opts.Config.Store.CachedEvents),
		eventstore.WithFetchDelay(time.Duration(opts.Config.Store.FetchDelayMs) * time.Millisecond),
		eventstore.WithCleanupDelay(time.Duration(opts.Config.Store.CleanupDelayMs) * time.Millisecond),
		eventstore.WithLogger(logger),
	}
	if opts.Monitor != nil {
		storeOpts = append(storeOpts, eventstore.WithMonitor(opts.Monitor))
	}
	store := eventstore.New(eng, storeOpts...)

	return &Runtime{db: db, engine: eng, store: store, config: opts.Config}, nil
}

// Close closes the store, the engine, and the underlying database.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var firstErr error
	if r.store != nil {
		if err := r.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.engine != nil {
		if err := r.engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CheckHealth performs a simple storage health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Store returns the embedded event store.
func (r *Runtime) Store() *eventstore.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
