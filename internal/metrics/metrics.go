// Package metrics exposes run and retry counters on a private Prometheus
// registry. mediawatch is a batch job, so instead of serving /metrics the
// registry is written to a node_exporter textfile after every run.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mediawatch/internal/pipeline"
	"mediawatch/internal/retry"
	"mediawatch/internal/services"
)

const namespace = "mediawatch"

// Registry owns every mediawatch collector.
type Registry struct {
	reg *prometheus.Registry

	RetryAttempts *prometheus.CounterVec
	RetryOutcomes *prometheus.CounterVec
	RetryDuration *prometheus.HistogramVec

	Runs             *prometheus.CounterVec
	RunDuration      prometheus.Gauge
	LastSuccess      prometheus.Gauge
	LastRunSubjects  *prometheus.GaugeVec
	LastRunFacts     *prometheus.GaugeVec
	LastRunDelivered *prometheus.GaugeVec
}

// New builds a registry with all collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		reg: reg,
		RetryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Attempts made against external collaborators, by result kind.",
		}, []string{"operation", "result"}),
		RetryOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_outcomes_total",
			Help:      "Final status of retried operations.",
		}, []string{"operation", "status"}),
		RetryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_duration_seconds",
			Help:      "Wall time of retried operations including backoff.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"operation"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by result.",
		}, []string{"result"}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the most recent run.",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the most recent successful run finished.",
		}),
		LastRunSubjects: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_subjects",
			Help:      "Library subjects handled by the most recent run.",
		}, []string{"state"}),
		LastRunFacts: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_facts",
			Help:      "Candidate facts by outcome in the most recent run.",
		}, []string{"outcome"}),
		LastRunDelivered: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_category_facts",
			Help:      "Accepted facts per classification category in the most recent run.",
		}, []string{"category"}),
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveRun updates the run gauges from a finished report.
func (r *Registry) ObserveRun(report pipeline.Report, runErr error) {
	result := "success"
	if runErr != nil {
		result = "failed"
	}
	r.Runs.WithLabelValues(result).Inc()
	r.RunDuration.Set(report.Duration.Seconds())
	if runErr == nil {
		r.LastSuccess.Set(float64(report.StartedAt.Add(report.Duration).Unix()))
	}

	r.LastRunSubjects.WithLabelValues("processed").Set(float64(report.SubjectsProcessed))
	r.LastRunSubjects.WithLabelValues("skipped").Set(float64(report.SubjectsSkipped))
	r.LastRunSubjects.WithLabelValues("cached").Set(float64(report.SubjectsCached))

	r.LastRunFacts.WithLabelValues("accepted").Set(float64(report.FactsAccepted))
	r.LastRunFacts.WithLabelValues("duplicate").Set(float64(report.FactsDuplicate))
	r.LastRunFacts.WithLabelValues("failed").Set(float64(report.FactsFailed))

	r.LastRunDelivered.Reset()
	for category, n := range report.CategoryCounts {
		r.LastRunDelivered.WithLabelValues(category).Set(float64(n))
	}
}

// WriteTextfile atomically writes the registry for node_exporter's textfile
// collector. An empty path is a no-op.
func (r *Registry) WriteTextfile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// RetryObserver records retry attempts and outcomes.
type RetryObserver struct {
	reg *Registry
}

var _ retry.Observer = (*RetryObserver)(nil)

// RetryObserver returns an observer bound to this registry.
func (r *Registry) RetryObserver() *RetryObserver {
	return &RetryObserver{reg: r}
}

func (o *RetryObserver) OnAttempt(_ context.Context, a retry.Attempt) {
	result := "ok"
	if a.Err != nil {
		result = services.Kind(a.Err)
		if errors.Is(a.Err, context.Canceled) || errors.Is(a.Err, context.DeadlineExceeded) {
			result = "canceled"
		}
	}
	o.reg.RetryAttempts.WithLabelValues(a.Operation, result).Inc()
}

func (o *RetryObserver) OnOutcome(_ context.Context, out retry.Outcome) {
	o.reg.RetryOutcomes.WithLabelValues(out.Operation, string(out.Status)).Inc()
	o.reg.RetryDuration.WithLabelValues(out.Operation).Observe(out.Elapsed.Seconds())
}
