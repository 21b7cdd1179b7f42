package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/rzbill/tide/internal/events"
)

func TestPeekIsIdempotent(t *testing.T) {
	eng := newMemEngine()
	s := newTestStore(t, eng)

	c := s.StreamEvents(nil)
	defer c.Close()
	// One empty read attempt moves the consumer onto the tail.
	if ok, err := c.HasNextAvailable(10 * time.Millisecond); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	publishN(t, s, 2)
	waitFor(t, func() bool {
		ev, err := c.Peek()
		return err == nil && ev != nil
	})

	first, err := c.Peek()
	if err != nil || first == nil {
		t.Fatalf("peek: ev=%v err=%v", first, err)
	}
	again, err := c.Peek()
	if err != nil {
		t.Fatalf("second peek: %v", err)
	}
	if !events.Equal(first.Token, again.Token) {
		t.Fatalf("peek not idempotent: %v then %v", first.Token, again.Token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	next, err := c.NextAvailable(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !events.Equal(next.Token, first.Token) {
		t.Fatalf("next %v should consume the peeked event %v", next.Token, first.Token)
	}

	after, err := c.Peek()
	if err != nil {
		t.Fatalf("peek after next: %v", err)
	}
	if after == nil || events.Equal(after.Token, first.Token) {
		t.Fatalf("peek after consumption should surface the following event, got %v", after)
	}
}

func TestStartTokenSuffixDelivery(t *testing.T) {
	eng := newMemEngine()
	s := newTestStore(t, eng)

	publishN(t, s, 10)

	// Start strictly after token 4: exactly 5..10 arrive, in order.
	c := s.StreamEvents(events.GlobalToken(4))
	defer c.Close()
	wantTokens(t, collect(t, c, 6), 5, 10)

	ok, err := c.HasNextAvailable(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("has next: %v", err)
	}
	if ok {
		t.Fatalf("no further events were committed, yet one was delivered")
	}
}

func TestConsumerCloseIsIdempotent(t *testing.T) {
	eng := newMemEngine()
	s := newTestStore(t, eng)

	publishN(t, s, 1)
	c := s.StreamEvents(nil)
	wantTokens(t, collect(t, c, 1), 1, 1)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if s.isTailing(c) {
		t.Fatalf("closed consumer still in tailing set")
	}
	c.privMu.Lock()
	open := c.priv != nil
	c.privMu.Unlock()
	if open {
		t.Fatalf("closed consumer still holds a private stream")
	}

	ev, err := c.Peek()
	if err != nil || ev != nil {
		t.Fatalf("peek on closed consumer: ev=%v err=%v", ev, err)
	}
}

// A consumer detached while parked on the tail still has its position
// advanced past the event that woke it, but no longer references the chain.
func TestDetachedWhileWaitingAdvancesTokenOnly(t *testing.T) {
	eng := newMemEngine()
	s := newTestStore(t, eng)

	c := s.StreamEvents(nil)
	defer c.Close()
	publishN(t, s, 1)
	wantTokens(t, collect(t, c, 1), 1, 1)

	// A second tailing consumer keeps the producer feeding the cache after
	// c is detached below.
	keeper := s.StreamEvents(nil)
	defer keeper.Close()
	wantTokens(t, collect(t, keeper, 1), 1, 1)
	// Push the keeper through its private-stream end so it joins the tail.
	if _, err := keeper.HasNextAvailable(10 * time.Millisecond); err != nil {
		t.Fatalf("keeper join: %v", err)
	}
	waitFor(t, func() bool { return s.isTailing(keeper) })

	res := drainAsync(c, 1, 10*time.Second)
	time.Sleep(50 * time.Millisecond)

	s.removeTailing(c)
	c.lastNode.Store(nil)
	publishN(t, s, 1)

	r := <-res
	if r.err != nil {
		t.Fatalf("drain: %v", r.err)
	}
	wantTokens(t, r.tokens, 2, 2)
	if !events.Equal(c.lastTokenValue(), events.GlobalToken(2)) {
		t.Fatalf("lastToken %v, want 2", c.lastTokenValue())
	}
	if c.lastNode.Load() != nil {
		t.Fatalf("detached consumer must not re-reference the chain")
	}

	// Subsequent reads recover through the private path.
	publishN(t, s, 1)
	wantTokens(t, collect(t, c, 1), 3, 3)
}

func TestNextAvailableHonorsContext(t *testing.T) {
	eng := newMemEngine()
	s := newTestStore(t, eng)

	c := s.StreamEvents(nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.NextAvailable(ctx)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancellation took too long")
	}
}

// A private catch-up failure surfaces to the caller; a later retry reopens
// the stream from the last delivered token.
func TestPrivateStreamFailureSurfaces(t *testing.T) {
	eng := newMemEngine()
	s := newTestStore(t, eng)
	publishN(t, s, 2)

	eng.failPrivateReads = true
	c := s.StreamEvents(nil)
	defer c.Close()

	if _, err := c.HasNextAvailable(10 * time.Millisecond); err == nil {
		t.Fatalf("expected the injected read failure to surface")
	}

	eng.failPrivateReads = false
	wantTokens(t, collect(t, c, 2), 1, 2)
}

func TestConsumerOpsAfterStoreClose(t *testing.T) {
	eng := newMemEngine()
	s := newTestStore(t, eng)

	publishN(t, s, 1)
	c := s.StreamEvents(nil)
	wantTokens(t, collect(t, c, 1), 1, 1)

	_ = s.Close()

	ev, err := c.Peek()
	if err != nil || ev != nil {
		t.Fatalf("peek after store close: ev=%v err=%v", ev, err)
	}
	if _, err := c.NextAvailable(context.Background()); err != ErrClosed {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}
