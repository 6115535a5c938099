// Package metrics exposes validation counters and timings to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/correlator-io/trackcheck/internal/validation"
)

const namespace = "trackcheck"

// Violation kinds used as the "kind" label.
const (
	KindDependency     = "dependency"
	KindTimestampOrder = "timestamp_order"
	KindProperty       = "property"
)

// Recorder owns a private registry so tests and multiple servers never collide
// on the global one.
type Recorder struct {
	registry *prometheus.Registry

	filesValidated *prometheus.CounterVec
	records        prometheus.Counter
	issues         *prometheus.CounterVec
	violations     *prometheus.CounterVec
	duration       prometheus.Histogram
}

// NewRecorder creates a Recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		filesValidated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_validated_total",
			Help:      "Total number of log files validated, by outcome",
		}, []string{"valid"}),
		records: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Total number of parsed log records",
		}),
		issues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Total number of validation issues, by type and severity",
		}, []string{"type", "severity"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Total number of counted violations, by kind",
		}, []string{"kind"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time taken to validate one log file",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), //nolint:mnd // 1ms to ~16s
		}),
	}
}

// Observe records one validated file.
func (r *Recorder) Observe(result *validation.Result, elapsed time.Duration) {
	r.filesValidated.WithLabelValues(strconv.FormatBool(result.Valid)).Inc()
	r.records.Add(float64(result.Stats.TotalEvents))
	r.duration.Observe(elapsed.Seconds())

	for _, list := range [][]validation.Issue{result.Errors, result.Warnings} {
		for _, issue := range list {
			r.issues.WithLabelValues(string(issue.Type), string(issue.Severity)).Inc()
		}
	}

	r.violations.WithLabelValues(KindDependency).Add(float64(result.Stats.DependencyViolations))
	r.violations.WithLabelValues(KindTimestampOrder).Add(float64(result.Stats.TimestampOrderViolations))
	r.violations.WithLabelValues(KindProperty).Add(float64(result.Stats.PropertyViolations))
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
