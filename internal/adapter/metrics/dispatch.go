package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics covers chat event processing.
type DispatchMetrics struct {
	EventsTotal        *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	InFlight           prometheus.Gauge
	RepliesTotal       *prometheus.CounterVec
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of chat events dispatched, by kind.",
		}, []string{"kind"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_duration_seconds",
			Help:      "Duration of chat event processing in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_in_flight",
			Help:      "Number of chat events currently being processed.",
		}),
		RepliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Total number of replies handed to transports, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.EventsTotal, m.ProcessingDuration, m.InFlight, m.RepliesTotal)
	return m
}
