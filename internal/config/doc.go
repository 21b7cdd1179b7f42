// Package config provides loading and environment overlay for Tide runtime
// configuration. It exposes a Default() baseline, file loading from JSON or
// YAML, and a TIDE_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/tide.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{DataDir: cfg.DataDir, Config: cfg})
//	defer rt.Close()
package config
