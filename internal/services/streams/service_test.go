package streamsvc

import (
	"context"
	"fmt"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/tide/internal/config"
	"github.com/rzbill/tide/internal/runtime"
	"github.com/rzbill/tide/pkg/log"
)

func newServiceForTest(t *testing.T) *Service {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Fsync = "always"
	cfg.Store.FetchDelayMs = 50
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Config: cfg, Logger: log.NewNopLogger()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return New(rt.Store(), log.NewNopLogger())
}

// chanSink collects delivered items for assertions.
type chanSink struct {
	ctx   context.Context
	items chan SubscribeItem
}

func newChanSink(ctx context.Context, capacity int) *chanSink {
	return &chanSink{ctx: ctx, items: make(chan SubscribeItem, capacity)}
}

func (s *chanSink) Send(it SubscribeItem) error {
	select {
	case s.items <- it:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *chanSink) Context() context.Context { return s.ctx }
func (s *chanSink) Flush() error             { return nil }

func TestPublishAssignsTokens(t *testing.T) {
	svc := newServiceForTest(t)
	ctx := context.Background()

	a, err := svc.Publish(ctx, PublishRequest{Type: "orders", Payload: []byte("a")})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	b, err := svc.Publish(ctx, PublishRequest{Type: "orders", Payload: []byte("b")})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.ID == "" || b.ID == "" {
		t.Fatalf("missing event ids: %+v %+v", a, b)
	}
	if !(a.Token < b.Token) {
		t.Fatalf("tokens must increase: %d then %d", a.Token, b.Token)
	}
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	svc := newServiceForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		if _, err := svc.Publish(ctx, PublishRequest{Type: "orders", Payload: []byte{byte(i)}}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	sink := newChanSink(ctx, 8)
	done := make(chan error, 1)
	go func() { done <- svc.Subscribe(sink, SubscribeOptions{Limit: 5}) }()

	var last uint64
	for i := 0; i < 5; i++ {
		select {
		case it := <-sink.items:
			if it.Token <= last {
				t.Fatalf("tokens out of order: %d after %d", it.Token, last)
			}
			last = it.Token
		case <-time.After(10 * time.Second):
			t.Fatalf("timeout waiting for item %d", i)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("subscribe: %v", err)
	}
}

func TestSubscribeFromToken(t *testing.T) {
	svc := newServiceForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 6; i++ {
		if _, err := svc.Publish(ctx, PublishRequest{Type: "orders", Payload: nil}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	sink := newChanSink(ctx, 8)
	done := make(chan error, 1)
	go func() { done <- svc.Subscribe(sink, SubscribeOptions{From: "4", Limit: 2}) }()

	for _, want := range []uint64{5, 6} {
		select {
		case it := <-sink.items:
			if it.Token != want {
				t.Fatalf("token %d, want %d", it.Token, want)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("timeout waiting for token %d", want)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("subscribe: %v", err)
	}
}

func TestSubscribeCELFilter(t *testing.T) {
	svc := newServiceForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 6; i++ {
		typ := "orders"
		if i%2 == 1 {
			typ = "payments"
		}
		payload := []byte(fmt.Sprintf(`{"n":%d}`, i))
		if _, err := svc.Publish(ctx, PublishRequest{Type: typ, Payload: payload, Metadata: map[string]string{"tenant": "acme"}}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	sink := newChanSink(ctx, 8)
	done := make(chan error, 1)
	go func() {
		done <- svc.Subscribe(sink, SubscribeOptions{
			Filter: `event_type == "payments" && metadata["tenant"] == "acme" && json.n >= 3`,
			Limit:  2,
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case it := <-sink.items:
			if it.Type != "payments" {
				t.Fatalf("filter leaked type %q", it.Type)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("timeout waiting for filtered item %d", i)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("subscribe: %v", err)
	}
}

func TestSubscribeRejectsBadFilter(t *testing.T) {
	svc := newServiceForTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newChanSink(ctx, 1)
	if err := svc.Subscribe(sink, SubscribeOptions{Filter: "this is not CEL ((("}); err == nil {
		t.Fatalf("expected filter compile error")
	}
}

func TestSubscribeRejectsBadFrom(t *testing.T) {
	svc := newServiceForTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newChanSink(ctx, 1)
	if err := svc.Subscribe(sink, SubscribeOptions{From: "xyz"}); err == nil {
		t.Fatalf("expected from-token parse error")
	}
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	svc := newServiceForTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	sink := newChanSink(ctx, 1)

	done := make(chan error, 1)
	go func() { done <- svc.Subscribe(sink, SubscribeOptions{}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancelled subscribe should return nil, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("subscribe did not stop on cancel")
	}
}
