// Package metrics exposes run progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/panelopt/panelopt/internal/simulation"
)

const namespace = "panelopt"

// Collector owns a registry with the run metrics.
type Collector struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	failures    prometheus.Counter
	repairs     prometheus.Counter
	duration    prometheus.Histogram
	generation  prometheus.Gauge
	best        *prometheus.GaugeVec
	feasible    prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Completed solver evaluations.",
		}, []string{"replayed"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_failures_total",
			Help:      "Solver evaluations that failed.",
		}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repairs_total",
			Help:      "Designs whose coupled variables were corrected before evaluation.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of solver runs, replayed evaluations excluded.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Index of the last completed generation.",
		}),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_objective",
			Help:      "Objective values of the best design of the last generation.",
		}, []string{"objective"}),
		feasible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_feasible",
			Help:      "1 when the best design of the last generation satisfies every constraint.",
		}),
	}
	c.registry.MustRegister(c.evaluations, c.failures, c.repairs, c.duration, c.generation, c.best, c.feasible)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// EvaluationFinished implements simulation.Observer.
func (c *Collector) EvaluationFinished(rec simulation.Record) {
	c.evaluations.WithLabelValues(strconv.FormatBool(rec.Replayed)).Inc()
	if !rec.Replayed {
		c.duration.Observe(rec.Duration.Seconds())
	}
}

// EvaluationFailed implements simulation.Observer.
func (c *Collector) EvaluationFailed(int, error) {
	c.failures.Inc()
}

// RepairObserved counts one coupled-variable correction.
func (c *Collector) RepairObserved() {
	c.repairs.Inc()
}

// GenerationCompleted publishes the summary of a generation.
func (c *Collector) GenerationCompleted(index int, names []string, best []float64, feasible bool) {
	c.generation.Set(float64(index))
	for i, v := range best {
		name := strconv.Itoa(i)
		if i < len(names) {
			name = names[i]
		}
		c.best.WithLabelValues(name).Set(v)
	}
	if feasible {
		c.feasible.Set(1)
	} else {
		c.feasible.Set(0)
	}
}

var _ simulation.Observer = (*Collector)(nil)
