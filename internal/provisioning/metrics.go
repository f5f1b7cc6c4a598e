package provisioning

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters for one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	attemptsTotal  *prometheus.CounterVec
	outcomesTotal  *prometheus.CounterVec
	probesTotal    *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	deployAttempts prometheus.Counter
}

// NewMetrics creates the run collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stagehand",
				Subsystem: "node",
				Name:      "attempts_total",
				Help:      "Bring-up attempts by provider and node",
			},
			[]string{"provider", "node"},
		),
		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stagehand",
				Subsystem: "node",
				Name:      "outcomes_total",
				Help:      "Final node outcomes by provider and state",
			},
			[]string{"provider", "state"},
		),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stagehand",
				Subsystem: "probe",
				Name:      "total",
				Help:      "Reachability and health probes by kind and result",
			},
			[]string{"kind", "result"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stagehand",
				Subsystem: "node",
				Name:      "duration_seconds",
				Help:      "Time to converge or fail a node",
				Buckets:   prometheus.ExponentialBuckets(5, 2, 10), // 5s to ~43min
			},
			[]string{"provider"},
		),
		deployAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stagehand",
				Subsystem: "stack",
				Name:      "deploy_attempts_total",
				Help:      "Stack deploy calls",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.attemptsTotal, m.outcomesTotal, m.probesTotal, m.nodeDuration, m.deployAttempts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordAttempt counts a bring-up attempt.
func (m *Metrics) RecordAttempt(provider, node string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(provider, node).Inc()
}

// RecordOutcome counts a final node outcome.
func (m *Metrics) RecordOutcome(provider string, o Outcome) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(provider, o.State.String()).Inc()
	m.nodeDuration.WithLabelValues(provider).Observe(o.Duration.Seconds())
}

// RecordProbe counts a probe result.
func (m *Metrics) RecordProbe(kind string, ok bool) {
	if m == nil {
		return
	}
	res := "failure"
	if ok {
		res = "success"
	}
	m.probesTotal.WithLabelValues(kind, res).Inc()
}

// RecordDeploy counts a stack deploy call.
func (m *Metrics) RecordDeploy() {
	if m == nil {
		return
	}
	m.deployAttempts.Inc()
}
