// Package prometheus exports pool execution metrics as Prometheus
// collectors.
package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/water-rs/native-executor/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors. Install
// it with Pool.SetMetrics before Start.
type MetricsExporter struct {
	pool string

	jobDurationSeconds *prom.HistogramVec
	jobPanicTotal      *prom.CounterVec
	jobDegradedTotal   *prom.CounterVec
	queueDepth         *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers collectors recording one
// pool's metrics. Registering against the same registry twice reuses
// the existing collectors, so several pools can share a registry and
// differ only in their pool label.
func NewMetricsExporter(pool string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "nexec",
		Name:      "job_duration_seconds",
		Help:      "Job execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"pool", "priority"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "nexec",
		Name:      "job_panic_total",
		Help:      "Total number of recovered job panics.",
	}, []string{"pool"})
	degradedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "nexec",
		Name:      "job_degraded_total",
		Help:      "Total number of jobs delivered outside the normal path.",
	}, []string{"pool", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "nexec",
		Name:      "queue_depth",
		Help:      "Current ready-queue depth.",
	}, []string{"pool"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if degradedVec, err = registerCollector(reg, degradedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		pool:               normalizeLabel(pool, "unknown"),
		jobDurationSeconds: durationVec,
		jobPanicTotal:      panicVec,
		jobDegradedTotal:   degradedVec,
		queueDepth:         queueDepthVec,
	}, nil
}

// RecordJobDuration records one job execution.
func (m *MetricsExporter) RecordJobDuration(pri core.Priority, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDurationSeconds.WithLabelValues(m.pool, pri.String()).Observe(d.Seconds())
}

// RecordJobPanic counts a recovered job panic.
func (m *MetricsExporter) RecordJobPanic(any) {
	if m == nil {
		return
	}
	m.jobPanicTotal.WithLabelValues(m.pool).Inc()
}

// RecordQueueDepth records the ready-queue depth after an enqueue.
func (m *MetricsExporter) RecordQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(m.pool).Set(float64(depth))
}

// RecordDegraded counts a job delivered outside the normal path.
func (m *MetricsExporter) RecordDegraded(reason string) {
	if m == nil {
		return
	}
	m.jobDegradedTotal.WithLabelValues(m.pool, normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
