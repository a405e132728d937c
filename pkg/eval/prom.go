package eval

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes the latest evaluation scores as Prometheus gauges.
type Exporter struct {
	registry    *prometheus.Registry
	values      *prometheus.GaugeVec
	evaluations *prometheus.CounterVec
}

// NewExporter creates an exporter with its own registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "receval_metric_value",
				Help: "Latest metric value per run and cutoff",
			},
			[]string{"run", "cutoff", "metric"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receval_evaluations_total",
				Help: "Total evaluations by outcome",
			},
			[]string{"status"},
		),
	}
	e.registry.MustRegister(e.values, e.evaluations)
	return e
}

// Observe records the scores of a finished report.
func (e *Exporter) Observe(r *Report) {
	for _, res := range r.Results {
		cutoff := strconv.Itoa(res.Cutoff)
		for metric, v := range res.Scores {
			e.values.WithLabelValues(res.Run, cutoff, metric).Set(v)
		}
	}
	e.evaluations.WithLabelValues("success").Inc()
}

// ObserveFailure counts a failed evaluation.
func (e *Exporter) ObserveFailure() {
	e.evaluations.WithLabelValues("failure").Inc()
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
