package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks backend operations (Redis commands, SQL queries).
type StoreMetrics struct {
	OpsTotal       *prometheus.CounterVec
	OpDuration     *prometheus.HistogramVec
	BreakerState   *prometheus.GaugeVec
	BreakerChanges *prometheus.CounterVec
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "ops_total",
			Help:      "Total number of store operations, by backend, operation and status.",
		}, []string{"backend", "op", "status"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "op_duration_seconds",
			Help:      "Duration of store operations in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}, []string{"backend", "op"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"backend"}),
		BreakerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Total number of circuit breaker transitions, by target state.",
		}, []string{"backend", "state"}),
	}

	reg.MustRegister(m.OpsTotal, m.OpDuration, m.BreakerState, m.BreakerChanges)
	return m
}

// ObserveOp records one operation. Nil-safe.
func (m *StoreMetrics) ObserveOp(backend, op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OpsTotal.WithLabelValues(backend, op, status).Inc()
	m.OpDuration.WithLabelValues(backend, op).Observe(elapsed.Seconds())
}

// ObserveBreaker records a circuit breaker transition. Nil-safe.
func (m *StoreMetrics) ObserveBreaker(backend, state string, value float64) {
	if m == nil {
		return
	}
	m.BreakerChanges.WithLabelValues(backend, state).Inc()
	m.BreakerState.WithLabelValues(backend).Set(value)
}
