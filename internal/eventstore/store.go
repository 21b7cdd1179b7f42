package eventstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/tide/internal/engine"
	"github.com/rzbill/tide/internal/events"
	"github.com/rzbill/tide/internal/monitor"
	"github.com/rzbill/tide/pkg/id"
	"github.com/rzbill/tide/pkg/log"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("eventstore: store closed")

// Store is the embedded event store. It owns the tailing cache, the producer
// goroutine that feeds it, and the set of consumers currently reading from
// the tail.
type Store struct {
	engine  engine.Engine
	logger  log.Logger
	monitor monitor.Monitor

	cachedEvents int
	fetchDelay   time.Duration
	cleanupDelay time.Duration

	// mu guards the tailing set and the consumer broadcast channel.
	mu       sync.Mutex
	tailing  map[*Consumer]struct{}
	notifyCh chan struct{}

	// oldest is the floor of the cache chain. Written only by the producer
	// (on the first cached event and in its trim step); nil until the first
	// event is cached.
	oldest atomic.Pointer[node]

	producer        *producer
	producerStarted atomic.Bool
	ids             *id.Generator

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a Store over the given storage engine.
func New(eng engine.Engine, opts ...Option) *Store {
	s := &Store{
		engine:       eng,
		logger:       log.NewLogger(),
		monitor:      monitor.Noop{},
		cachedEvents: DefaultCachedEvents,
		fetchDelay:   DefaultFetchDelay,
		cleanupDelay: DefaultCleanupDelay,
		tailing:      map[*Consumer]struct{}{},
		notifyCh:     make(chan struct{}),
		ids:          id.NewGenerator(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.Component("eventstore"))
	s.producer = newProducer(s)
	return s
}

// Publish appends the events durably and fires the after-commit edge that
// wakes the producer.
func (s *Store) Publish(ctx context.Context, evts ...events.Event) ([]events.TrackedEvent, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	tracked, err := s.engine.AppendEvents(ctx, evts)
	if err != nil {
		return nil, err
	}
	s.monitor.EventsAppended(len(tracked))
	s.afterCommit()
	return tracked, nil
}

// afterCommit is the notification edge from a successful append; it shortens
// the producer's next sleep.
func (s *Store) afterCommit() {
	s.producer.wake()
}

// StreamEvents opens a consumer positioned at the given start token (nil
// means from the beginning). If the token is covered by the cache the
// consumer starts tailing immediately; otherwise it catches up through a
// private engine stream first.
func (s *Store) StreamEvents(start events.TrackingToken) *Consumer {
	c := &Consumer{store: s, id: s.ids.Next().String()}
	c.setLastToken(start)
	if n := s.findNode(start); n != nil {
		c.lastNode.Store(n)
		s.joinTail(c)
	}
	return c
}

// findNode locates the cache node holding the event with the given token.
// Returns nil for a nil token, an empty cache, or a token that has already
// been evicted.
func (s *Store) findNode(tok events.TrackingToken) *node {
	oldest := s.oldest.Load()
	if tok == nil || oldest == nil || oldest.event.Token.IsAfter(tok) {
		return nil
	}
	n := oldest
	for n != nil && !n.event.Token.Equals(tok) {
		n = n.next.Load()
	}
	return n
}

// Close shuts down all tailing consumers, the producer, and the cleaner.
// Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		for _, c := range s.tailingSnapshot() {
			_ = c.Close()
		}
		s.producer.close()
	})
	return nil
}

func (s *Store) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ensureProducerStarted launches the producer and cleaner exactly once.
func (s *Store) ensureProducerStarted() {
	if s.producerStarted.CompareAndSwap(false, true) {
		go s.producer.run()
		go s.runCleaner()
	}
}

// joinTail adds the consumer to the tailing set and makes sure the producer
// is feeding the cache.
func (s *Store) joinTail(c *Consumer) {
	s.mu.Lock()
	s.tailing[c] = struct{}{}
	s.mu.Unlock()
	s.ensureProducerStarted()
}

func (s *Store) removeTailing(c *Consumer) {
	s.mu.Lock()
	delete(s.tailing, c)
	s.mu.Unlock()
}

func (s *Store) isTailing(c *Consumer) bool {
	s.mu.Lock()
	_, ok := s.tailing[c]
	s.mu.Unlock()
	return ok
}

func (s *Store) hasTailing() bool {
	s.mu.Lock()
	n := len(s.tailing)
	s.mu.Unlock()
	return n > 0
}

// tailingSnapshot returns the current members; iteration never holds mu.
func (s *Store) tailingSnapshot() []*Consumer {
	s.mu.Lock()
	out := make([]*Consumer, 0, len(s.tailing))
	for c := range s.tailing {
		out = append(out, c)
	}
	s.mu.Unlock()
	return out
}

// notifyConsumers wakes every consumer blocked on the tail. Broadcast is a
// close-and-replace of the shared channel.
func (s *Store) notifyConsumers() {
	s.mu.Lock()
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
	s.mu.Unlock()
}

// consumerNotifyChan returns the channel closed on the next appended node.
func (s *Store) consumerNotifyChan() chan struct{} {
	s.mu.Lock()
	ch := s.notifyCh
	s.mu.Unlock()
	return ch
}
