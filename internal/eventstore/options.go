package eventstore

import (
	"time"

	"github.com/rzbill/tide/internal/monitor"
	"github.com/rzbill/tide/pkg/log"
)

// Defaults for store tuning.
const (
	DefaultCachedEvents = 10000
	DefaultFetchDelay   = 1 * time.Second
	DefaultCleanupDelay = 10 * time.Second
)

// Option configures a Store at construction time.
type Option func(*Store)

// WithCachedEvents bounds the number of nodes retained in the cache chain.
func WithCachedEvents(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cachedEvents = n
		}
	}
}

// WithFetchDelay sets the maximum idle interval between producer storage
// probes.
func WithFetchDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.fetchDelay = d
		}
	}
}

// WithCleanupDelay sets the period of the laggard cleaner.
func WithCleanupDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.cleanupDelay = d
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMonitor sets the instrumentation sink.
func WithMonitor(m monitor.Monitor) Option {
	return func(s *Store) {
		if m != nil {
			s.monitor = m
		}
	}
}
