package eventstore

import (
	"sync/atomic"

	"github.com/rzbill/tide/internal/events"
)

// node is one link in the tailing cache chain. Everything but next is
// immutable after construction; next is written exactly once, by the
// producer, from nil to the successor node. Readers load it atomically, so a
// published link is visible with all of the node's fields.
type node struct {
	index         uint64
	previousToken events.TrackingToken
	event         events.TrackedEvent
	next          atomic.Pointer[node]
}

func newNode(index uint64, previousToken events.TrackingToken, event events.TrackedEvent) *node {
	return &node{index: index, previousToken: previousToken, event: event}
}
