// Package runtime wires storage, config, and the event store into a
// single-node Tide instance. It exposes Open/Close, a basic health check,
// and accessors used by higher-level services and transports.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	tracked, _ := rt.Store().Publish(ctx, events.New("order.placed", payload))
package runtime
