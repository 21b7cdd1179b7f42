// Package httpserver provides Tide's REST gateway: JSON append/health
// endpoints, SSE live subscribe, and the Prometheus metrics handler.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
