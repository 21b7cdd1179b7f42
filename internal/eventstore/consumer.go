package eventstore

import (
	"context"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/tide/internal/engine"
	"github.com/rzbill/tide/internal/events"
)

// unboundedWait is the per-iteration wait used by NextAvailable; shutdown and
// context cancellation interrupt it.
const unboundedWait = time.Duration(math.MaxInt64)

// TrackingEventStream is the consumer-facing view of an open subscription.
type TrackingEventStream interface {
	// Peek returns the next event without consuming it, or nil if none is
	// immediately available. Repeated calls return the same event.
	Peek() (*events.TrackedEvent, error)
	// HasNextAvailable waits up to timeout for an event to become peekable.
	HasNextAvailable(timeout time.Duration) (bool, error)
	// NextAvailable blocks until the next event arrives, the context is
	// cancelled, or the store closes.
	NextAvailable(ctx context.Context) (*events.TrackedEvent, error)
	// Close releases the subscription. Idempotent.
	Close() error
}

// Consumer is a single subscription to the global event stream. It tails the
// shared cache when its position is inside the cache window and reads a
// private engine stream to catch up otherwise.
//
// A Consumer is driven from one goroutine at a time. Close may be called
// from any goroutine.
type Consumer struct {
	store *Store
	id    string

	// lastToken and lastNode are read by the producer and the cleaner, so
	// both are independently atomically readable. A nil lastNode means
	// "re-scan from the cache floor".
	lastToken atomic.Pointer[tokenCell]
	lastNode  atomic.Pointer[node]

	// peeked belongs to the driving goroutine. priv is shared with Close,
	// hence the mutex; private reads never block, so holding it across a
	// stream call is cheap.
	peeked *events.TrackedEvent
	privMu sync.Mutex
	priv   engine.Stream

	closed atomic.Bool
}

var _ TrackingEventStream = (*Consumer)(nil)

// tokenCell boxes a TrackingToken for atomic replacement.
type tokenCell struct {
	tok events.TrackingToken
}

// ID identifies the consumer in log entries; transport frames do not carry it.
func (c *Consumer) ID() string { return c.id }

func (c *Consumer) lastTokenValue() events.TrackingToken {
	if cell := c.lastToken.Load(); cell != nil {
		return cell.tok
	}
	return nil
}

func (c *Consumer) setLastToken(t events.TrackingToken) {
	c.lastToken.Store(&tokenCell{tok: t})
}

// Peek implements TrackingEventStream.
func (c *Consumer) Peek() (*events.TrackedEvent, error) {
	if c.peeked != nil {
		return c.peeked, nil
	}
	if _, err := c.HasNextAvailable(0); err != nil {
		return nil, err
	}
	return c.peeked, nil
}

// HasNextAvailable implements TrackingEventStream.
func (c *Consumer) HasNextAvailable(timeout time.Duration) (bool, error) {
	if c.peeked != nil {
		return true, nil
	}
	ev, err := c.peek(context.Background(), timeout)
	if err != nil {
		return false, err
	}
	c.peeked = ev
	return ev != nil, nil
}

// NextAvailable implements TrackingEventStream.
func (c *Consumer) NextAvailable(ctx context.Context) (*events.TrackedEvent, error) {
	for c.peeked == nil {
		if c.closed.Load() || c.store.isClosed() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := c.peek(ctx, unboundedWait)
		if err != nil {
			return nil, err
		}
		c.peeked = ev
	}
	ev := c.peeked
	c.peeked = nil
	return ev, nil
}

// peek fetches the next event through the mode the consumer is currently in.
func (c *Consumer) peek(ctx context.Context, timeout time.Duration) (*events.TrackedEvent, error) {
	if c.closed.Load() || c.store.isClosed() {
		return nil, nil
	}
	if c.isTailingConsumer() {
		return c.peekGlobalStream(ctx, timeout)
	}
	return c.peekPrivateStream(ctx, timeout)
}

// isTailingConsumer is the authoritative mode check: membership in the
// tailing set is advisory, so it is combined with a freshness check against
// the cache floor.
func (c *Consumer) isTailingConsumer() bool {
	if !c.store.isTailing(c) {
		return false
	}
	last := c.lastTokenValue()
	oldest := c.store.oldest.Load()
	return last == nil || oldest == nil || last.IsAfter(oldest.previousToken)
}

// peekGlobalStream advances along the cache chain, waiting at most timeout
// on the shared broadcast when the tip has been reached.
func (c *Consumer) peekGlobalStream(ctx context.Context, timeout time.Duration) (*events.TrackedEvent, error) {
	next := c.nextNode()
	if next == nil && timeout > 0 {
		// Grab the broadcast channel before the re-check so an append
		// between the two cannot be missed.
		ch := c.store.consumerNotifyChan()
		if next = c.nextNode(); next == nil {
			timer := time.NewTimer(timeout)
			select {
			case <-ch:
			case <-timer.C:
			case <-c.store.done:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
			timer.Stop()
			next = c.nextNode()
		}
	}
	if next == nil {
		return nil, nil
	}
	// A consumer detached while waiting must not re-reference the chain,
	// but its position still advances past the delivered event.
	if c.store.isTailing(c) {
		c.lastNode.Store(next)
	}
	c.setLastToken(next.event.Token)
	c.store.monitor.EventDelivered()
	ev := next.event
	return &ev, nil
}

// peekPrivateStream drains a direct engine read until it ends, then rejoins
// the tail and, when the caller is willing to wait, retries through the
// global path.
func (c *Consumer) peekPrivateStream(ctx context.Context, timeout time.Duration) (*events.TrackedEvent, error) {
	c.privMu.Lock()
	if c.priv == nil {
		stream, err := c.store.engine.ReadEvents(c.lastTokenValue(), false)
		if err != nil {
			c.privMu.Unlock()
			return nil, err
		}
		c.priv = stream
	}
	ev, err := c.priv.Next()
	c.privMu.Unlock()
	if err == nil {
		c.setLastToken(ev.Token)
		c.store.monitor.EventDelivered()
		return &ev, nil
	}
	if err != io.EOF {
		// Surface the failure; drop the stream so a retry reopens it from
		// the last delivered token.
		c.closePrivateStream()
		return nil, err
	}

	// Caught up: rejoin the tail.
	c.closePrivateStream()
	c.lastNode.Store(c.store.findNode(c.lastTokenValue()))
	c.store.joinTail(c)
	if timeout > 0 {
		return c.peek(ctx, timeout)
	}
	return nil, nil
}

// nextNode returns the successor of the last delivered node. With no node
// reference (fresh tail join, or detached by the cleaner) it re-scans from
// the cache floor for the node whose previousToken matches the consumer's
// position.
func (c *Consumer) nextNode() *node {
	if n := c.lastNode.Load(); n != nil {
		return n.next.Load()
	}
	last := c.lastTokenValue()
	n := c.store.oldest.Load()
	for n != nil && !events.Equal(n.previousToken, last) {
		n = n.next.Load()
	}
	return n
}

// Close implements TrackingEventStream. Idempotent.
func (c *Consumer) Close() error {
	c.closed.Store(true)
	c.closePrivateStream()
	c.store.removeTailing(c)
	return nil
}

func (c *Consumer) closePrivateStream() {
	c.privMu.Lock()
	if c.priv != nil {
		_ = c.priv.Close()
		c.priv = nil
	}
	c.privMu.Unlock()
}
