package config

import (
	"testing"
)

func TestDefaultDataDirXDGOverride(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/tide" {
		t.Fatalf("got %q, want /custom/data/tide", got)
	}
}

func TestDefaultDataDirNonEmpty(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	if got := DefaultDataDir(); got == "" {
		t.Fatalf("expected a non-empty default data dir")
	}
}
