package pebbleengine

import (
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/tide/internal/events"
)

// scanBatch bounds how many entries a single iterator pass buffers.
const scanBatch = 256

// logStream reads the global log forward from a starting sequence. In
// blocking mode an exhausted stream waits up to blockWait for a new append
// before reporting io.EOF.
type logStream struct {
	eng     *Engine
	nextSeq uint64
	block   bool

	buf []events.TrackedEvent

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Next returns the next event, io.EOF at the end of the stream, or the first
// decode error encountered.
func (s *logStream) Next() (events.TrackedEvent, error) {
	for {
		if len(s.buf) > 0 {
			ev := s.buf[0]
			s.buf = s.buf[1:]
			return ev, nil
		}
		if s.isClosed() {
			return events.TrackedEvent{}, io.EOF
		}
		if err := s.scan(); err != nil {
			return events.TrackedEvent{}, err
		}
		if len(s.buf) > 0 {
			continue
		}
		if !s.block {
			return events.TrackedEvent{}, io.EOF
		}
		// One bounded wait for an append, then a final rescan.
		notify := s.eng.notifyChan()
		select {
		case <-notify:
		case <-time.After(blockWait):
		case <-s.done:
			return events.TrackedEvent{}, io.EOF
		case <-s.eng.done:
			return events.TrackedEvent{}, io.EOF
		}
		if err := s.scan(); err != nil {
			return events.TrackedEvent{}, err
		}
		if len(s.buf) == 0 {
			return events.TrackedEvent{}, io.EOF
		}
	}
}

// scan fills the buffer with up to scanBatch persisted entries from nextSeq.
func (s *logStream) scan() error {
	low := keyEntry(s.nextSeq)
	hi := keyEntry(^uint64(0))
	iter, err := s.eng.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return err
	}
	defer iter.Close()

	for ok := iter.First(); ok && len(s.buf) < scanBatch; ok = iter.Next() {
		seq := entrySeq(iter.Key())
		ev, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		s.buf = append(s.buf, events.TrackedEvent{Event: ev, Token: events.GlobalToken(seq)})
		s.nextSeq = seq + 1
	}
	return nil
}

func (s *logStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the stream and unblocks a concurrent Next.
func (s *logStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}
