// Package log provides Tide's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog, so output format (text or JSON) and destination are
// a construction-time choice while all call sites stay on the facade.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat(log.FormatText),
//	)
//	l = l.With(log.Component("producer"))
//	l.Info("started", log.Int("cached_events", 10000))
//
// Tests that need a silent logger use NewNopLogger.
package log
