package pebbleengine

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/tide/internal/engine"
	"github.com/rzbill/tide/internal/events"
	pebblestore "github.com/rzbill/tide/internal/storage/pebble"
)

// blockWait bounds how long a tailing stream waits for a new append before
// reporting EOF to its reader.
const blockWait = 100 * time.Millisecond

// Engine is the Pebble-backed storage engine.
type Engine struct {
	db *pebblestore.DB

	mu       sync.Mutex
	lastSeq  uint64
	notifyCh chan struct{}
	closed   bool
	done     chan struct{}
}

var _ engine.Engine = (*Engine)(nil)

// Open initializes the engine and restores the last sequence from metadata.
func Open(db *pebblestore.DB) (*Engine, error) {
	e := &Engine{db: db, notifyCh: make(chan struct{}), done: make(chan struct{})}
	meta, err := db.Get(metaKey)
	if err == nil && len(meta) >= 8 {
		e.lastSeq = binary.BigEndian.Uint64(meta[:8])
	} else if err != nil && err != pebble.ErrNotFound {
		return nil, err
	}
	return e, nil
}

// AppendEvents persists the events as a single atomic batch and returns them
// with their assigned tokens.
func (e *Engine) AppendEvents(ctx context.Context, evts []events.Event) ([]events.TrackedEvent, error) {
	if len(evts) == 0 {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, engine.ErrClosed
	}

	b := e.db.NewBatch()
	defer b.Close()

	tracked := make([]events.TrackedEvent, 0, len(evts))
	seq := e.lastSeq
	for _, ev := range evts {
		seq++
		val, err := encodeRecord(ev)
		if err != nil {
			return nil, err
		}
		if err := b.Set(keyEntry(seq), val, nil); err != nil {
			return nil, err
		}
		tracked = append(tracked, events.TrackedEvent{Event: ev, Token: events.GlobalToken(seq)})
	}

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], seq)
	if err := b.Set(metaKey, meta[:], nil); err != nil {
		return nil, err
	}
	if err := e.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	e.lastSeq = seq

	// wake tailing streams
	close(e.notifyCh)
	e.notifyCh = make(chan struct{})
	return tracked, nil
}

// ReadEvents opens a stream of events strictly after the given token.
func (e *Engine) ReadEvents(after events.TrackingToken, mayBlock bool) (engine.Stream, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, engine.ErrClosed
	}

	var startSeq uint64 = 1
	if t, ok := after.(events.GlobalToken); ok {
		startSeq = uint64(t) + 1
	}
	return &logStream{
		eng:     e,
		nextSeq: startSeq,
		block:   mayBlock,
		done:    make(chan struct{}),
	}, nil
}

// Close marks the engine closed and wakes any blocked streams. The wrapped
// database is owned by the caller and left open.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.done)
	return nil
}

// notifyChan returns the channel closed on the next append.
func (e *Engine) notifyChan() chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notifyCh
}
