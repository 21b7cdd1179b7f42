// Package events defines the event and tracking-token model shared by the
// storage engine and the event store core.
//
// A TrackingToken identifies a position in the global event stream. Tokens
// are totally ordered; a nil token means "before everything" and is valid
// wherever a token is accepted. The concrete token minted by the bundled
// storage engine is GlobalToken, a global sequence number.
//
// Events are opaque to the store: payload bytes plus a small envelope
// (identifier, type, metadata, timestamp). A TrackedEvent is an Event paired
// with the token the engine assigned on append.
package events
