package metrics

import "github.com/prometheus/client_golang/prometheus"

// Intent outcomes used as label values.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// KarmaMetrics counts karma intents by what happened to them.
type KarmaMetrics struct {
	IntentsTotal *prometheus.CounterVec
}

func NewKarmaMetrics(reg prometheus.Registerer) *KarmaMetrics {
	m := &KarmaMetrics{
		IntentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "karma",
			Name:      "intents_total",
			Help:      "Total number of parsed karma intents, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.IntentsTotal)
	return m
}

// ObserveIntent is nil-safe so callers can run without metrics in tests.
func (m *KarmaMetrics) ObserveIntent(outcome string) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(outcome).Inc()
}
