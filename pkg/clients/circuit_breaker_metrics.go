package clients

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CircuitBreakerMetrics records breaker state and transitions.
type CircuitBreakerMetrics struct {
	State       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
}

// NewCircuitBreakerMetrics creates and registers breaker metrics on reg.
func NewCircuitBreakerMetrics(reg prometheus.Registerer) *CircuitBreakerMetrics {
	m := &CircuitBreakerMetrics{
		// Values: 0=closed, 1=half-open, 2=open
		State: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_state_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.State, m.Transitions)
	}
	return m
}

// Callback returns a function suitable for CircuitBreakerConfig.OnStateChange.
func (m *CircuitBreakerMetrics) Callback() func(string, CircuitBreakerState, CircuitBreakerState) {
	return func(name string, from, to CircuitBreakerState) {
		if m == nil {
			return
		}
		m.Transitions.WithLabelValues(name, from.String(), to.String()).Inc()
		m.State.WithLabelValues(name).Set(float64(to))
	}
}
