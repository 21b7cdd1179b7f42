package pebbleengine

import (
	"errors"
	"testing"
	"time"

	"github.com/rzbill/tide/internal/events"
)

func TestRecordRoundTrip(t *testing.T) {
	in := events.Event{
		ID:        "ev-1",
		Type:      "order.placed",
		Payload:   []byte(`{"total":12}`),
		Metadata:  map[string]string{"tenant": "acme"},
		Timestamp: time.UnixMilli(1720000000000).UTC(),
	}
	b, err := encodeRecord(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodeRecord(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != in.ID || out.Type != in.Type || string(out.Payload) != string(in.Payload) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Metadata["tenant"] != "acme" {
		t.Fatalf("metadata lost: %+v", out.Metadata)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("timestamp %v want %v", out.Timestamp, in.Timestamp)
	}
}

func TestDecodeRejectsCorruptPayload(t *testing.T) {
	b, err := encodeRecord(events.New("t", []byte("payload")))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b[len(b)-6] ^= 0xff // flip a payload byte, CRC no longer matches
	if _, err := decodeRecord(b); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("want ErrCorruptRecord, got %v", err)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	for _, b := range [][]byte{nil, {0x01}, {0xff, 0x01, 0x02}} {
		if _, err := decodeRecord(b); !errors.Is(err, ErrCorruptRecord) {
			t.Fatalf("want ErrCorruptRecord for %v, got %v", b, err)
		}
	}
}
