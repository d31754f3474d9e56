package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the run-loop's Prometheus collectors.
type Metrics struct {
	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	commands   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	unresolved prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archharness_runs_total",
				Help: "Total number of runs by workflow and final status",
			},
			[]string{"workflow", "status"},
		),
		iterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archharness_run_retry_iterations",
				Help:    "Build/review retry iterations per run",
				Buckets: prometheus.LinearBuckets(0, 1, 6),
			},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archharness_check_commands_total",
				Help: "Check command executions by check name and outcome",
			},
			[]string{"check", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archharness_run_duration_seconds",
				Help:    "Wall-clock run duration",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"workflow"},
		),
		unresolved: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archharness_unresolved_findings",
				Help:    "High-severity findings left when a run finalizes",
				Buckets: prometheus.LinearBuckets(0, 1, 5),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.iterations, m.commands, m.duration, m.unresolved)
	}
	return m
}

func (m *Metrics) observeCheck(check, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(check, outcome).Inc()
}

func (m *Metrics) observeRun(workflow, status string, iterations, unresolved int, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(workflow, status).Inc()
	m.iterations.Observe(float64(iterations))
	m.unresolved.Observe(float64(unresolved))
	m.duration.WithLabelValues(workflow).Observe(seconds)
}
