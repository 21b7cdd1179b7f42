// Package engine defines the storage-engine contract the event store core
// builds on: durable append of events and ordered reads from an arbitrary
// tracking token, in blocking (tailing) or non-blocking (catch-up) mode.
//
// Implementations live in subpackages; pebbleengine is the bundled durable
// engine. The core never persists anything itself.
package engine
