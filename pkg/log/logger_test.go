package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"", InfoLevel, true},
		{"bogus", InfoLevel, false},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("ParseLevel(%q) err=%v, want ok=%v", c.in, err, c.ok)
		}
		if got != c.want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", c.in, got, c.want)
		}
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(DebugLevel), WithFormat(FormatJSON), WithOutput(&buf))
	l = l.With(Component("store"))
	l.Info("cache trimmed", Int("depth", 42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["component"] != "store" {
		t.Fatalf("missing component field: %v", entry)
	}
	if entry["depth"] != float64(42) {
		t.Fatalf("missing depth field: %v", entry)
	}
	if entry["msg"] != "cache trimmed" {
		t.Fatalf("unexpected message: %v", entry)
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(WarnLevel), WithOutput(&buf))
	l.Info("dropped")
	l.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be gated: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %s", out)
	}
}
