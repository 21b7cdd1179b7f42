package eventstore

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rzbill/tide/internal/engine"
	"github.com/rzbill/tide/internal/events"
)

var errInjectedRead = errors.New("injected read failure")

// memEngine is an in-memory storage engine for store tests. Tokens are
// 1-based global sequence numbers. failBlockingReads makes every other
// blocking ReadEvents call fail, exercising the producer's retry path.
type memEngine struct {
	mu       sync.Mutex
	evts     []events.TrackedEvent
	notifyCh chan struct{}

	failBlockingReads bool
	blockingReads     int
	failPrivateReads  bool
}

func newMemEngine() *memEngine {
	return &memEngine{notifyCh: make(chan struct{})}
}

func (m *memEngine) AppendEvents(_ context.Context, evts []events.Event) ([]events.TrackedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tracked := make([]events.TrackedEvent, 0, len(evts))
	for _, ev := range evts {
		te := events.TrackedEvent{Event: ev, Token: events.GlobalToken(len(m.evts) + 1)}
		m.evts = append(m.evts, te)
		tracked = append(tracked, te)
	}
	close(m.notifyCh)
	m.notifyCh = make(chan struct{})
	return tracked, nil
}

func (m *memEngine) ReadEvents(after events.TrackingToken, mayBlock bool) (engine.Stream, error) {
	var pos int
	if t, ok := after.(events.GlobalToken); ok {
		pos = int(t)
	}
	if mayBlock {
		m.mu.Lock()
		m.blockingReads++
		fail := m.failBlockingReads && m.blockingReads%2 == 1
		m.mu.Unlock()
		if fail {
			return nil, errInjectedRead
		}
	} else if m.failPrivateReads {
		return nil, errInjectedRead
	}
	return &memStream{eng: m, pos: pos, block: mayBlock, done: make(chan struct{})}, nil
}

func (m *memEngine) notifyChan() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifyCh
}

func (m *memEngine) at(pos int) (events.TrackedEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos < len(m.evts) {
		return m.evts[pos], true
	}
	return events.TrackedEvent{}, false
}

type memStream struct {
	eng   *memEngine
	pos   int
	block bool

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (s *memStream) Next() (events.TrackedEvent, error) {
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return events.TrackedEvent{}, io.EOF
		}
		if ev, ok := s.eng.at(s.pos); ok {
			s.pos++
			return ev, nil
		}
		if !s.block {
			return events.TrackedEvent{}, io.EOF
		}
		notify := s.eng.notifyChan()
		if ev, ok := s.eng.at(s.pos); ok {
			s.pos++
			return ev, nil
		}
		select {
		case <-notify:
		case <-time.After(20 * time.Millisecond):
			if _, ok := s.eng.at(s.pos); !ok {
				return events.TrackedEvent{}, io.EOF
			}
		case <-s.done:
			return events.TrackedEvent{}, io.EOF
		}
	}
}

func (s *memStream) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	return nil
}
