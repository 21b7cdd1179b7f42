package streamsvc

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rzbill/tide/internal/events"
	"github.com/rzbill/tide/internal/eventstore"
	logpkg "github.com/rzbill/tide/pkg/log"
)

// Service provides publish/subscribe operations on the embedded event store.
type Service struct {
	store  *eventstore.Store
	logger logpkg.Logger
}

// New returns a Service over the given store.
func New(store *eventstore.Store, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Service{store: store, logger: logger.With(logpkg.Component("streams"))}
}

// Publish appends one event and returns its stored identity.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (PublishAck, error) {
	ev := events.New(req.Type, req.Payload).WithMetadata(req.Metadata)
	tracked, err := s.store.Publish(ctx, ev)
	if err != nil {
		return PublishAck{}, err
	}
	te := tracked[0]
	tok, _ := te.Token.(events.GlobalToken)
	return PublishAck{ID: te.ID, Token: uint64(tok)}, nil
}

// Subscribe streams events into the sink from the requested position until
// the sink's context ends, the optional limit is reached, or the store
// closes. Filtered-out events are skipped without being counted against the
// limit.
func (s *Service) Subscribe(sink SubscribeSink, opts SubscribeOptions) error {
	filter, err := newCELFilter(opts.Filter)
	if err != nil {
		return fmt.Errorf("streams: compile filter: %w", err)
	}
	start, err := parseFrom(opts.From)
	if err != nil {
		return err
	}

	c := s.store.StreamEvents(start)
	defer c.Close()
	s.logger.Debug("subscriber attached",
		logpkg.Str("consumer", c.ID()), logpkg.Str("from", opts.From), logpkg.Str("filter", opts.Filter))

	ctx := sink.Context()
	sent := 0
	for opts.Limit == 0 || sent < opts.Limit {
		ev, err := c.NextAvailable(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, eventstore.ErrClosed) {
				return nil
			}
			return err
		}
		it := toSubscribeItem(ev)
		if !filter.Eval(it) {
			continue
		}
		if err := sink.Send(it); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
		sent++
	}
	return nil
}

func toSubscribeItem(ev *events.TrackedEvent) SubscribeItem {
	tok, _ := ev.Token.(events.GlobalToken)
	return SubscribeItem{
		ID:       ev.ID,
		Type:     ev.Type,
		Token:    uint64(tok),
		Payload:  ev.Payload,
		Metadata: ev.Metadata,
		TsMs:     ev.Timestamp.UnixMilli(),
	}
}

// parseFrom maps the wire position to a tracking token: empty is "from the
// beginning", otherwise a decimal global sequence to resume strictly after.
func parseFrom(from string) (events.TrackingToken, error) {
	if from == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(from, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("streams: invalid from token %q", from)
	}
	return events.GlobalToken(n), nil
}
