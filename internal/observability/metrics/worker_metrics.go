package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// WorkerMetrics tracks calendar sync worker runs.
type WorkerMetrics struct {
	jobRuns      metric.Int64Counter
	jobErrors    metric.Int64Counter
	jobTimeouts  metric.Int64Counter
	jobDurations metric.Float64Histogram
}

var (
	workerOnce sync.Once
	workerInst *WorkerMetrics
)

// Worker returns the shared worker metrics instance.
func Worker() *WorkerMetrics {
	workerOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("doorbell")

		jobRuns, _ := meter.Int64Counter("doorbell_worker_job_runs_total")
		jobErrors, _ := meter.Int64Counter("doorbell_worker_job_errors_total")
		jobTimeouts, _ := meter.Int64Counter("doorbell_worker_job_timeouts_total")
		jobDurations, _ := meter.Float64Histogram("doorbell_worker_job_duration_seconds")

		workerInst = &WorkerMetrics{
			jobRuns:      jobRuns,
			jobErrors:    jobErrors,
			jobTimeouts:  jobTimeouts,
			jobDurations: jobDurations,
		}
	})
	return workerInst
}

// IncJobRun counts one job execution.
func (w *WorkerMetrics) IncJobRun(job string) {
	if w == nil || w.jobRuns == nil {
		return
	}
	w.jobRuns.Add(context.Background(), 1, metric.WithAttributes(jobAttr(job)))
}

// IncJobError counts one failed job execution.
func (w *WorkerMetrics) IncJobError(job string) {
	if w == nil || w.jobErrors == nil {
		return
	}
	w.jobErrors.Add(context.Background(), 1, metric.WithAttributes(jobAttr(job)))
}

// IncJobTimeout counts one job that hit its deadline.
func (w *WorkerMetrics) IncJobTimeout(job string) {
	if w == nil || w.jobTimeouts == nil {
		return
	}
	w.jobTimeouts.Add(context.Background(), 1, metric.WithAttributes(jobAttr(job)))
}

// ObserveJobDuration records job wall time.
func (w *WorkerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if w == nil || w.jobDurations == nil {
		return
	}
	w.jobDurations.Record(context.Background(), d.Seconds(), metric.WithAttributes(jobAttr(job)))
}

func jobAttr(job string) attribute.KeyValue {
	return attribute.String("job", strings.TrimSpace(job))
}
