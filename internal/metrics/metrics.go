// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mediamirror/mediamirror/internal/domain"
)

type Metrics struct {
	eventsTotal *prometheus.CounterVec
	inFlight    prometheus.Gauge
}

// New registers the pipeline metrics. Pass nil to use the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamirror_events_total",
				Help: "Download lifecycle events by type.",
			},
			[]string{"type"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mediamirror_downloads_in_flight",
				Help: "Downloads between Started and a terminal event.",
			},
		),
	}

	reg.MustRegister(m.eventsTotal, m.inFlight)
	return m
}

// ObserveEvent records one lifecycle event and keeps the in-flight gauge in
// step with Started/terminal transitions.
func (m *Metrics) ObserveEvent(t domain.EventType) {
	m.eventsTotal.WithLabelValues(string(t)).Inc()

	switch t {
	case domain.EventStarted:
		m.inFlight.Inc()
	case domain.EventCompleted, domain.EventFailed, domain.EventFailedHTTP:
		m.inFlight.Dec()
	}
}
