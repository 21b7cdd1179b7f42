// Package streamsvc implements the Streams facade on top of the embedded
// event store. It provides publish and live subscribe with optional CEL
// filtering, consumed by the HTTP transport.
//
// Example:
//
//	svc := streamsvc.New(rt.Store(), logger)
//	ack, _ := svc.Publish(ctx, streamsvc.PublishRequest{Type: "order.placed", Payload: []byte("{}")})
//	_ = svc.Subscribe(mySink, streamsvc.SubscribeOptions{Filter: `event_type == "order.placed"`})
package streamsvc
