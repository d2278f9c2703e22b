package ingest

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded for every ingested event.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
)

// Metrics exposes Prometheus collectors describing ingest activity.
type Metrics struct {
	events       *prometheus.CounterVec
	tasksRunning prometheus.Gauge
}

// NewMetrics constructs ingest metrics and registers them with reg. When the
// collectors are already registered the existing ones are reused, so several
// adapters in one process share counters.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentmesh",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Inbound events by type and outcome (applied, noop or anomaly category).",
		},
		[]string{"type", "outcome"},
	)
	running := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agentmesh",
			Name:      "tasks_running",
			Help:      "Number of tasks currently running.",
		},
	)

	if err := reg.Register(eventsTotal); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		eventsTotal = already.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(running); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		running = already.ExistingCollector.(prometheus.Gauge)
	}

	return &Metrics{events: eventsTotal, tasksRunning: running}, nil
}

func (m *Metrics) observe(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) setRunning(n int) {
	if m == nil {
		return
	}
	m.tasksRunning.Set(float64(n))
}
