package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ledger collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Charges                *prometheus.CounterVec
	AttributionTransitions *prometheus.CounterVec
	JobRuns                *prometheus.CounterVec
	JobDuration            *prometheus.HistogramVec
	HTTPDuration           *prometheus.HistogramVec
	EventsPublished        *prometheus.CounterVec
	WSConnections          prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_charges_total",
			Help: "Sponsorship charge attempts by outcome.",
		}, []string{"outcome"}),
		AttributionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attribution_transitions_total",
			Help: "Attribution status transitions by target status and outcome.",
		}, []string{"status", "outcome"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_runs_total",
			Help: "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobs_duration_seconds",
			Help:    "Scheduled job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route", "status"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Domain events handed to publishers by type and outcome.",
		}, []string{"type", "outcome"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_dashboard_connections",
			Help: "Open dashboard WebSocket connections.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.Charges, m.AttributionTransitions, m.JobRuns, m.JobDuration,
		m.HTTPDuration, m.EventsPublished, m.WSConnections,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Charge(outcome string) {
	if m == nil {
		return
	}
	m.Charges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(status, outcome string) {
	if m == nil {
		return
	}
	m.AttributionTransitions.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) JobRun(job, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(seconds)
}

func (m *Metrics) HTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(seconds)
}

func (m *Metrics) Event(eventType, outcome string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) WSConnected(delta float64) {
	if m == nil {
		return
	}
	m.WSConnections.Add(delta)
}
