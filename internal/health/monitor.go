// Package health consolidates settings and circuit-breaker state into a
// single verdict for operational dashboards and alerting.
package health

import (
	"context"

	"github.com/nibog-labs/notifyd/internal/breaker"
	"github.com/nibog-labs/notifyd/internal/config"
)

// Report is the consolidated health verdict. Derived on every check, never stored.
type Report struct {
	Healthy      bool   `json:"healthy"`
	Enabled      bool   `json:"enabled"`
	CircuitOpen  bool   `json:"circuitOpen"`
	FailureCount int    `json:"failureCount"`
	ResetInMs    int64  `json:"resetInMs"`
	Error        string `json:"error,omitempty"`
}

// Prober performs an optional lightweight reachability check against the
// gateway. Probe errors are attached to the report without consuming the
// circuit breaker's failure budget.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context) error

// Probe implements Prober.
func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// Monitor combines the settings provider and the breaker's read-only status.
type Monitor struct {
	settings *config.Manager
	breaker  *breaker.Breaker
	prober   Prober // nil disables the reachability probe
}

// NewMonitor creates a Monitor. Pass a nil prober to skip the reachability check.
func NewMonitor(settings *config.Manager, brk *breaker.Breaker, prober Prober) *Monitor {
	return &Monitor{settings: settings, breaker: brk, prober: prober}
}

// Check produces the health report. A deliberately disabled integration is
// healthy; an enabled one is unhealthy while the circuit is open or when the
// reachability probe fails.
func (m *Monitor) Check(ctx context.Context) Report {
	if !m.settings.Get().Enabled {
		return Report{Healthy: true, Enabled: false}
	}

	st := m.breaker.Status()
	r := Report{
		Healthy:      !st.Open,
		Enabled:      true,
		CircuitOpen:  st.Open,
		FailureCount: st.Failures,
		ResetInMs:    st.ResetIn.Milliseconds(),
	}

	if r.Healthy && m.prober != nil {
		if err := m.prober.Probe(ctx); err != nil {
			r.Healthy = false
			r.Error = err.Error()
		}
	}
	return r
}
