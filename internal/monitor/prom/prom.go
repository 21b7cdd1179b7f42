// Package prom exports store monitor signals as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/tide/internal/monitor"
)

// Adapter implements monitor.Monitor over Prometheus collectors. All
// Prometheus metric types are goroutine-safe.
type Adapter struct {
	appended   prometheus.Counter
	delivered  prometheus.Counter
	detached   prometheus.Counter
	cacheDepth prometheus.Gauge
}

var _ monitor.Monitor = (*Adapter)(nil)

// New constructs a Prometheus monitor adapter.
//   - reg: registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns:  Prometheus namespace applied to all metrics
func New(reg prometheus.Registerer, ns string) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		appended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "events_appended_total",
			Help:      "Events durably appended",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "events_delivered_total",
			Help:      "Events delivered to consumers",
		}),
		detached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "consumers_detached_total",
			Help:      "Tailing consumers detached after falling behind the cache",
		}),
		cacheDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "cache_depth",
			Help:      "Nodes currently retained in the tailing cache",
		}),
	}
	reg.MustRegister(a.appended, a.delivered, a.detached, a.cacheDepth)
	return a
}

// EventsAppended adds to the appended counter.
func (a *Adapter) EventsAppended(n int) { a.appended.Add(float64(n)) }

// EventDelivered increments the delivered counter.
func (a *Adapter) EventDelivered() { a.delivered.Inc() }

// ConsumerDetached increments the detached counter.
func (a *Adapter) ConsumerDetached() { a.detached.Inc() }

// CacheDepth sets the cache depth gauge.
func (a *Adapter) CacheDepth(n int) { a.cacheDepth.Set(float64(n)) }
