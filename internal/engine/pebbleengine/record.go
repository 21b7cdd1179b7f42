package pebbleengine

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"time"

	"github.com/rzbill/tide/internal/events"
)

// Record encoding: uvarint headerLen | header | payload | crc32c(header|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorruptRecord is returned when a stored record fails CRC validation or
// cannot be decoded.
var ErrCorruptRecord = errors.New("pebbleengine: corrupt record")

// envelope is the JSON header persisted alongside the payload.
type envelope struct {
	ID   string            `json:"id"`
	Type string            `json:"type,omitempty"`
	TsMs int64             `json:"ts_ms"`
	Meta map[string]string `json:"meta,omitempty"`
}

func encodeRecord(e events.Event) ([]byte, error) {
	header, err := json.Marshal(envelope{
		ID:   e.ID,
		Type: e.Type,
		TsMs: e.Timestamp.UnixMilli(),
		Meta: e.Metadata,
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 10+len(header)+len(e.Payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, e.Payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, e.Payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...), nil
}

func decodeRecord(b []byte) (events.Event, error) {
	if len(b) < 1+4 {
		return events.Event{}, ErrCorruptRecord
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || n+int(hlen)+4 > len(b) {
		return events.Event{}, ErrCorruptRecord
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]

	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return events.Event{}, ErrCorruptRecord
	}

	var env envelope
	if err := json.Unmarshal(header, &env); err != nil {
		return events.Event{}, ErrCorruptRecord
	}
	return events.Event{
		ID:        env.ID,
		Type:      env.Type,
		Payload:   append([]byte(nil), payload...),
		Metadata:  env.Meta,
		Timestamp: time.UnixMilli(env.TsMs).UTC(),
	}, nil
}
