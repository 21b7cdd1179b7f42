package streamsvc

import (
	"context"
)

// PublishRequest carries one event to append.
type PublishRequest struct {
	Type     string
	Payload  []byte
	Metadata map[string]string
}

// PublishAck reports the stored identity of a published event.
type PublishAck struct {
	ID    string
	Token uint64
}

// SubscribeItem represents a delivered event for streaming.
type SubscribeItem struct {
	ID       string
	Type     string
	Token    uint64
	Payload  []byte
	Metadata map[string]string
	TsMs     int64
}

// SubscribeSink is implemented by transports to receive streamed items.
type SubscribeSink interface {
	Send(SubscribeItem) error
	Context() context.Context
	Flush() error
}

// SubscribeOptions controls the starting position and filtering of a
// subscribe.
type SubscribeOptions struct {
	// From is the tracking token to resume strictly after, as a decimal
	// global sequence. Empty means from the beginning.
	From string
	// Filter is an optional CEL expression evaluated per event. When empty,
	// all events are delivered.
	Filter string
	// Limit is the maximum number of events to deliver before returning.
	// When 0, the subscribe runs until the sink's context ends.
	Limit int
}
