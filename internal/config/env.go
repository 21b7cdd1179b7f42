package config

import (
	"os"
	"strconv"
)

// FromEnv overlays TIDE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TIDE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TIDE_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("TIDE_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("TIDE_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("TIDE_CACHED_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.CachedEvents = n
		}
	}
	if v := os.Getenv("TIDE_FETCH_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.FetchDelayMs = n
		}
	}
	if v := os.Getenv("TIDE_CLEANUP_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.CleanupDelayMs = n
		}
	}
	if v := os.Getenv("TIDE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TIDE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
