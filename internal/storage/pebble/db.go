package pebblestore

import (
	"context"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each committed batch/write.
	FsyncModeAlways
	// FsyncModeInterval enables group-commit by allowing Pebble to coalesce
	// WAL syncs for operations within the configured interval.
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application. Pebble
	// may still sync based on its own policies.
	FsyncModeNever
)

// ParseFsyncMode maps a config string to an FsyncMode. Unknown values yield
// FsyncModeUnspecified, which Open treats as a small group-commit interval.
func ParseFsyncMode(s string) FsyncMode {
	switch s {
	case "always":
		return FsyncModeAlways
	case "interval":
		return FsyncModeInterval
	case "never":
		return FsyncModeNever
	default:
		return FsyncModeUnspecified
	}
}

// Options configures the Pebble store wrapper.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

// DB wraps a Pebble database instance with the fsync policy and basic helpers.
type DB struct {
	inner     *pebble.DB
	writeSync bool
}

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	switch opts.Fsync {
	case FsyncModeAlways, FsyncModeNever:
		// Sync behavior is decided per commit; no WAL interval tuning.
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		interval := opts.FsyncInterval
		po.WALMinSyncInterval = func() time.Duration { return interval }
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner, writeSync: opts.Fsync == FsyncModeAlways}, nil
}

// Close closes the Pebble database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// NewSnapshot creates a consistent view of the database. Caller must Close it.
func (db *DB) NewSnapshot() *pebble.Snapshot {
	return db.inner.NewSnapshot()
}

// NewBatch creates a new batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch commits the provided batch with the configured fsync policy.
func (db *DB) CommitBatch(ctx context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebblestore: nil batch")
	}
	syncMode := pebble.NoSync
	if db.writeSync {
		syncMode = pebble.Sync
	}
	return b.Commit(syncMode)
}

// Set sets a key to a value using a small internal batch respecting the
// fsync policy.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Delete removes a key using a small internal batch respecting the fsync
// policy.
func (db *DB) Delete(key []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Get copies the value for the given key. Pebble's pebble.ErrNotFound is
// returned for missing keys.
func (db *DB) Get(key []byte) ([]byte, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// NewIter creates a raw Pebble iterator with the provided options.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}
