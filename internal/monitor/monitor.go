// Package monitor defines the instrumentation sink the event store reports
// into. The default is a no-op; monitor/prom exports the same signals as
// Prometheus metrics.
package monitor

// Monitor receives store-level signals. Implementations must be safe for
// concurrent use.
type Monitor interface {
	// EventsAppended records n events durably appended via Publish.
	EventsAppended(n int)
	// EventDelivered records one event handed to a consumer.
	EventDelivered()
	// ConsumerDetached records a tailing consumer detached by the cleaner.
	ConsumerDetached()
	// CacheDepth records the current number of nodes in the tailing cache.
	CacheDepth(n int)
}

// Noop is the default Monitor; it discards everything.
type Noop struct{}

var _ Monitor = Noop{}

func (Noop) EventsAppended(int) {}
func (Noop) EventDelivered()    {}
func (Noop) ConsumerDetached()  {}
func (Noop) CacheDepth(int)     {}
