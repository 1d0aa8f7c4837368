package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors updated by the executor. Each instance owns
// its own registry.
type Metrics struct {
	Registry     *prometheus.Registry
	RunsTotal    *prometheus.CounterVec
	StepsTotal   *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
}

// NewMetrics registers the recipe executor collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recipe_executor_runs_total",
			Help: "Recipe runs by terminal state",
		}, []string{"state"}),
		StepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recipe_executor_steps_total",
			Help: "Executed steps by type and outcome",
		}, []string{"type", "status"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recipe_executor_step_duration_seconds",
			Help:    "Step execution time in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
	}
}

// ObserveStep records one step outcome.
func (m *Metrics) ObserveStep(stepType, status string, seconds float64) {
	if m == nil {
		return
	}
	m.StepsTotal.WithLabelValues(stepType, status).Inc()
	m.StepDuration.WithLabelValues(stepType).Observe(seconds)
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
