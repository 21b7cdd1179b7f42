package pebbleengine

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - log/m
// - log/e/{seq_be8}

var (
	metaKey     = []byte("log/m")
	entryPrefix = []byte("log/e/")
)

// keyEntry builds the entry key with a big-endian sequence for ordering.
func keyEntry(seq uint64) []byte {
	k := make([]byte, 0, len(entryPrefix)+8)
	k = append(k, entryPrefix...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(k, b[:]...)
}

// entrySeq extracts the sequence from an entry key.
func entrySeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(entryPrefix):])
}
