// Package pebbleengine implements the durable storage engine over Pebble.
//
// # Overview
//
// Events are persisted in a single global log with lexicographically ordered
// keys:
//   - log/m           (metadata: lastSeq)
//   - log/e/{seq_be8} (entries)
//
// Records are stored as: headerLen(uvarint) | header | payload | crc32c(header|payload),
// where the header is the JSON-encoded event envelope (id, type, timestamp,
// metadata). The sequence number assigned on append becomes the event's
// GlobalToken.
//
// API surface (internal)
//
//	eng, _ := pebbleengine.Open(db)
//	tracked, _ := eng.AppendEvents(ctx, evts)
//
//	// Catch-up read: persisted events only, terminates at the tail
//	s, _ := eng.ReadEvents(token, false)
//
//	// Tailing read: blocks briefly for new appends before reporting EOF
//	s, _ = eng.ReadEvents(token, true)
//
// Appends wake blocked tailing streams through a close-and-replace
// notification channel.
package pebbleengine
