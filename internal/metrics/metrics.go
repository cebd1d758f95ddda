// Package metrics exposes Prometheus instrumentation for the dispatch path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for notification dispatch.
type Metrics struct {
	SendAttempts  *prometheus.CounterVec
	SendDuration  prometheus.Histogram
	BreakerOpen   prometheus.Gauge
	BreakerTrips  prometheus.Counter
	FailureStreak prometheus.Gauge
}

// New registers the dispatch collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SendAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifyd",
			Name:      "send_attempts_total",
			Help:      "Notification send attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		SendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "notifyd",
			Name:      "send_duration_seconds",
			Help:      "Wall time of gateway send calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "notifyd",
			Name:      "breaker_open",
			Help:      "1 when the gateway circuit breaker is open.",
		}),
		BreakerTrips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "notifyd",
			Name:      "breaker_trips_total",
			Help:      "Times the circuit breaker transitioned to open.",
		}),
		FailureStreak: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "notifyd",
			Name:      "consecutive_failures",
			Help:      "Current consecutive gateway failure count.",
		}),
	}
}

// Observe updates the breaker gauges from a status snapshot.
func (m *Metrics) Observe(open bool, failures int) {
	if open {
		m.BreakerOpen.Set(1)
	} else {
		m.BreakerOpen.Set(0)
	}
	m.FailureStreak.Set(float64(failures))
}
