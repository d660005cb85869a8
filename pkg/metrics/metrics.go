// Package metrics records what the percona adapter did during a migration run: how many
// statements took the online path versus the driver, how pt-osc runs ended, how long they
// took, and how much output they produced. Metrics live in a private registry and can be
// exported in the Prometheus text format for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "departure"

// Route labels for statements.
const (
	RouteOnline = "online"
	RouteDirect = "direct"
)

// Recorder owns the adapter's Prometheus collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	Statements  *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	OutputLines *prometheus.CounterVec
	Migrations  *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		Statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Statements dispatched by the adapter, by route",
		}, []string{"route"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ptosc_runs_total",
			Help:      "pt-online-schema-change runs, by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ptosc_run_duration_seconds",
			Help:      "Duration of pt-online-schema-change runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		OutputLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ptosc_output_lines_total",
			Help:      "Lines of pt-online-schema-change output, by severity",
		}, []string{"severity"}),
		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Migrations executed, by status",
		}, []string{"status"}),
	}

	reg.MustRegister(r.Statements, r.Runs, r.RunDuration, r.OutputLines, r.Migrations)
	return r
}

// Registry exposes the underlying registry, mostly for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveStatement(route string) {
	if r != nil {
		r.Statements.WithLabelValues(route).Inc()
	}
}

func (r *Recorder) ObserveRun(outcome string, d time.Duration) {
	if r != nil {
		r.Runs.WithLabelValues(outcome).Inc()
		r.RunDuration.Observe(d.Seconds())
	}
}

func (r *Recorder) ObserveLine(severity string) {
	if r != nil {
		r.OutputLines.WithLabelValues(severity).Inc()
	}
}

func (r *Recorder) ObserveMigration(status string) {
	if r != nil {
		r.Migrations.WithLabelValues(status).Inc()
	}
}

// WriteTextfile atomically writes all metrics to path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}

	return errors.Wrapf(prometheus.WriteToTextfile(path, r.registry), "failed to write metrics to %s", path)
}
