// Package metrics turns executor progress events into Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aqasim81/schemaledger/internal/executor"
)

const namespace = "schemaledger"

// Recorder holds the metrics for one process on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	appliedTotal  prometheus.Counter
	failedTotal   prometheus.Counter
	applyDuration prometheus.Histogram
	latestVersion prometheus.Gauge
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		appliedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_applied_total",
			Help:      "Number of migrations applied.",
		}),
		failedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_failed_total",
			Help:      "Number of migrations that failed and were rolled back.",
		}),
		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_duration_seconds",
			Help:      "Time spent applying a single migration.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}),
		latestVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_applied_version",
			Help:      "Highest migration version applied in this process.",
		}),
	}
}

// Observe records one progress event. It matches the signature expected by
// executor.WithProgressCallback.
func (r *Recorder) Observe(ev executor.ProgressEvent) {
	switch ev.Status {
	case executor.StatusCompleted:
		r.appliedTotal.Inc()
		r.applyDuration.Observe(ev.Duration.Seconds())

		if ev.Migration != nil {
			r.latestVersion.Set(float64(ev.Migration.Version))
		}
	case executor.StatusFailed:
		r.failedTotal.Inc()
		r.applyDuration.Observe(ev.Duration.Seconds())
	}
}

// Registry exposes the registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the metrics in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}

	return nil
}
