package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	streamsvc "github.com/rzbill/tide/internal/services/streams"
)

// sseSink implements streamsvc.SubscribeSink for Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
	r *http.Request
}

// Send writes one stream item as an SSE data event: JSON body with the
// "data: " prefix and a blank-line terminator.
func (s sseSink) Send(it streamsvc.SubscribeItem) error {
	b, _ := json.Marshal(map[string]any{
		"id":       it.ID,
		"type":     it.Type,
		"token":    it.Token,
		"payload":  it.Payload,
		"metadata": it.Metadata,
		"ts_ms":    it.TsMs,
	})
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	_, err := s.w.Write([]byte("\n\n"))
	return err
}

// Context returns the request context for cancellation.
func (s sseSink) Context() context.Context { return s.r.Context() }

// Flush pushes buffered bytes to the client when the writer supports it.
func (s sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
