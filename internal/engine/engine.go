package engine

import (
	"context"
	"errors"

	"github.com/rzbill/tide/internal/events"
)

// ErrClosed is returned by operations on a closed engine or stream.
var ErrClosed = errors.New("engine: closed")

// Stream is a lazy, ordered sequence of tracked events. Next returns io.EOF
// when the sequence is exhausted. Streams must be closed; closing unblocks a
// concurrently blocked Next.
type Stream interface {
	Next() (events.TrackedEvent, error)
	Close() error
}

// Engine is the durable storage collaborator of the event store.
type Engine interface {
	// AppendEvents atomically persists the events in order and returns them
	// with their assigned tracking tokens.
	AppendEvents(ctx context.Context, evts []events.Event) ([]events.TrackedEvent, error)

	// ReadEvents opens a stream of events strictly after the given token
	// (nil means from the beginning). When mayBlock is true the stream may
	// wait briefly for newly committed events before reporting io.EOF; when
	// false it returns only currently persisted events.
	ReadEvents(after events.TrackingToken, mayBlock bool) (Stream, error)
}
