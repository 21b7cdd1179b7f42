package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single message to be appended to the store. Payload bytes are
// opaque; the envelope travels alongside them.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	Metadata  map[string]string
	Timestamp time.Time
}

// New builds an Event with a fresh identifier and the current timestamp.
func New(eventType string, payload []byte) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// WithMetadata returns a copy of the event with the given metadata attached.
func (e Event) WithMetadata(md map[string]string) Event {
	e.Metadata = md
	return e
}

// TrackedEvent is an Event paired with the tracking token the storage engine
// assigned when the event was appended.
type TrackedEvent struct {
	Event
	Token TrackingToken
}
