// Package eventstore implements the embedded event store: a single shared
// tailing cache over the storage engine, multiplexing any number of live
// consumers.
//
// # Overview
//
// One background producer reads newly committed events from the engine and
// links them into a bounded, singly-linked cache of the most recent events.
// Consumers opened with StreamEvents either tail that cache (walking forward
// links and blocking on a shared broadcast) or, when their position is not
// covered by the cache, catch up through a private engine stream and rejoin
// the tail once they reach it. A periodic cleaner detaches tailing consumers
// that have fallen behind the cache window; they recover through the private
// path on their next read.
//
// API surface (internal)
//
//	store := eventstore.New(eng, eventstore.WithCachedEvents(10000))
//	defer store.Close()
//
//	// Append and notify the tail
//	tracked, _ := store.Publish(ctx, events.New("order.placed", payload))
//
//	// Read everything from the beginning, then keep tailing
//	c := store.StreamEvents(nil)
//	defer c.Close()
//	for {
//	    ev, err := c.NextAvailable(ctx)
//	    ...
//	}
//
// The producer is the sole writer of forward links and the cache tip, so
// consumers traverse the chain without locks; publication happens through
// atomic pointers. The cache floor (oldest) is advanced only by the
// producer's trim step; the cleaner breaks consumer references into evicted
// prefixes but never mutates the chain itself.
package eventstore
