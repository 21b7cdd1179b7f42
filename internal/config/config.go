package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir  string `json:"dataDir" yaml:"dataDir"`
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`

	// Fsync is one of "always", "interval", "never".
	Fsync           string `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`

	Store StoreConfig `json:"store" yaml:"store"`
	Log   LogConfig   `json:"log" yaml:"log"`
}

// StoreConfig tunes the embedded event store's tailing cache.
type StoreConfig struct {
	// CachedEvents bounds the number of events retained in the tailing cache.
	CachedEvents int `json:"cachedEvents" yaml:"cachedEvents"`
	// FetchDelayMs is the producer's maximum idle interval between storage
	// probes.
	FetchDelayMs int `json:"fetchDelayMs" yaml:"fetchDelayMs"`
	// CleanupDelayMs is the period of the laggard cleaner.
	CleanupDelayMs int `json:"cleanupDelayMs" yaml:"cleanupDelayMs"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Fsync:    "interval",
		Store: StoreConfig{
			CachedEvents:   10000,
			FetchDelayMs:   1000,
			CleanupDelayMs: 10000,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
