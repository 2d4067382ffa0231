// Package metric holds the pipeline's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can run with
// metrics disabled.
package metric

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "highlightsync"

type Metrics struct {
	registry *prometheus.Registry

	books       *prometheus.CounterVec   // stage, outcome
	records     *prometheus.CounterVec   // kind, outcome
	enrichments *prometheus.CounterVec   // outcome
	notes       *prometheus.CounterVec   // outcome
	requests    *prometheus.HistogramVec // service, outcome
	lastRun     *prometheus.GaugeVec     // kind
}

// New creates the collectors and registers them on a private registry.
// withRuntime adds the Go and process collectors, which only make sense for
// a long-running server.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		books: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "books_total",
			Help:      "Books handled, by pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Annotation records written to the local store, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Enrichment chain results.",
		}, []string{"outcome"}),
		notes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_notes_total",
			Help:      "Catalog notes created or failed.",
		}, []string{"outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_request_duration_seconds",
			Help:      "Outbound request latency by service and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service", "outcome"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run of each kind finished.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(m.books, m.records, m.enrichments, m.notes, m.requests, m.lastRun)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Book(stage, outcome string) {
	if m == nil {
		return
	}
	m.books.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) Record(kind, outcome string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Enrichment(found bool) {
	if m == nil {
		return
	}
	outcome := "none"
	if found {
		outcome = "found"
	}
	m.enrichments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notes(created, failed int) {
	if m == nil {
		return
	}
	m.notes.WithLabelValues("created").Add(float64(created))
	m.notes.WithLabelValues("failed").Add(float64(failed))
}

// ObserveRequest records one outbound call that started at start.
func (m *Metrics) ObserveRequest(service string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(service, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RunFinished(kind string, at time.Time) {
	if m == nil {
		return
	}
	m.lastRun.WithLabelValues(kind).Set(float64(at.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for a node_exporter textfile collector.
// Empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
