package eventstore

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/tide/internal/engine"
	"github.com/rzbill/tide/internal/events"
	"github.com/rzbill/tide/pkg/log"
)

// producer is the single background task feeding the cache chain. It is the
// only writer of node forward links, the cache tip, and (through trimCache)
// the cache floor.
type producer struct {
	store *Store

	// mu guards wakeCh replacement, the in-flight stream, and closed.
	mu     sync.Mutex
	wakeCh chan struct{}
	stream engine.Stream
	closed bool

	shouldFetch atomic.Bool

	// newest is touched only by the producer goroutine.
	newest *node
}

func newProducer(s *Store) *producer {
	return &producer{store: s, wakeCh: make(chan struct{})}
}

// run loops until the store closes: drain fetches while the wake flag is
// set, then sleep for at most fetchDelay.
func (p *producer) run() {
	for !p.isClosed() {
		dataFound := false
		p.shouldFetch.Store(true)
		for p.shouldFetch.Swap(false) {
			dataFound = p.fetchData()
		}
		if !dataFound {
			p.waitForData()
		}
	}
}

// waitForData sleeps until a wake-up, the fetch delay, or store shutdown.
// The flag re-check under mu closes the window between a missed wake and the
// sleep.
func (p *producer) waitForData() {
	p.mu.Lock()
	if p.closed || p.shouldFetch.Load() {
		p.mu.Unlock()
		return
	}
	ch := p.wakeCh
	p.mu.Unlock()

	timer := time.NewTimer(p.store.fetchDelay)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	case <-p.store.done:
	}
}

// wake requests an immediate fetch. Flag before broadcast, so a waiter that
// checked the flag under mu cannot miss the signal.
func (p *producer) wake() {
	p.shouldFetch.Store(true)
	p.mu.Lock()
	if !p.closed {
		close(p.wakeCh)
		p.wakeCh = make(chan struct{})
	}
	p.mu.Unlock()
}

// fetchData reads events committed after the cache tip and links them into
// the chain. Returns true iff the tip advanced.
func (p *producer) fetchData() bool {
	previousNewest := p.newest
	if !p.store.hasTailing() {
		return false
	}

	stream, err := p.store.engine.ReadEvents(p.lastToken(), true)
	if err != nil {
		p.store.logger.Error("failed to read events from the storage engine", log.Err(err))
		return p.newest != previousNewest
	}
	if !p.trackStream(stream) {
		_ = stream.Close()
		return p.newest != previousNewest
	}

	for {
		ev, err := stream.Next()
		if err != nil {
			if err != io.EOF {
				p.store.logger.Error("failed to read events from the storage engine", log.Err(err))
			}
			break
		}
		n := newNode(p.nextIndex(), p.lastToken(), ev)
		if p.newest != nil {
			p.newest.next.Store(n)
		}
		p.newest = n
		if p.store.oldest.Load() == nil {
			p.store.oldest.Store(n)
		}
		p.store.notifyConsumers()
		p.trimCache()
	}

	p.untrackStream()
	_ = stream.Close()
	return p.newest != previousNewest
}

// lastToken is the position the next fetch starts after: the cache tip, or,
// while the cache is empty, the smallest last token among tailing consumers
// (nil sorts first, meaning "from the beginning").
func (p *producer) lastToken() events.TrackingToken {
	if p.newest != nil {
		return p.newest.event.Token
	}
	consumers := p.store.tailingSnapshot()
	if len(consumers) == 0 {
		return nil
	}
	min := consumers[0].lastTokenValue()
	for _, c := range consumers[1:] {
		if min == nil {
			break
		}
		if t := c.lastTokenValue(); t == nil || min.IsAfter(t) {
			min = t
		}
	}
	return min
}

func (p *producer) nextIndex() uint64 {
	if p.newest == nil {
		return 0
	}
	return p.newest.index + 1
}

// trimCache advances the cache floor until the chain holds at most
// cachedEvents nodes. Evicted nodes stay alive only while a consumer still
// references them.
func (p *producer) trimCache() {
	last := p.store.oldest.Load()
	for p.newest != nil && last != nil && p.newest.index-last.index >= uint64(p.store.cachedEvents) {
		last = last.next.Load()
	}
	p.store.oldest.Store(last)
	if p.newest != nil && last != nil {
		p.store.monitor.CacheDepth(int(p.newest.index-last.index) + 1)
	}
}

// trackStream records the in-flight stream so close can interrupt a blocked
// read. Returns false if the producer closed meanwhile.
func (p *producer) trackStream(s engine.Stream) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.stream = s
	return true
}

func (p *producer) untrackStream() {
	p.mu.Lock()
	p.stream = nil
	p.mu.Unlock()
}

func (p *producer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// close terminates the run loop and interrupts any in-flight storage read.
// Cached nodes remain readable for consumers draining after shutdown.
func (p *producer) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	stream := p.stream
	p.stream = nil
	p.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}
}
