// Package id generates short, lexicographically sortable identifiers used to
// tag consumers and subscriptions in logs.
//
// An ID is 12 bytes big-endian: [8 bytes ms_timestamp][4 bytes counter], so
// byte-wise comparison preserves chronological order and IDs minted within
// the same millisecond stay strictly increasing. The Generator pins to the
// last observed millisecond if the clock regresses.
//
// Usage
//
//	g := id.NewGenerator()
//	sub := g.Next()
//	logger.Info("consumer attached", log.Str("consumer", sub.String()))
package id
