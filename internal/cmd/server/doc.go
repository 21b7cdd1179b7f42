// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the Tide runtime with the HTTP server, handling lifecycle and shutdown.
//
// Example:
//
//	opts := serverrun.Options{DataDir: "./data", Config: config.Default()}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun
