// Package metrics exposes the Prometheus gauges and histograms the serve
// command registers on /metrics, grounded on the shape of warren's
// pkg/metrics: package-level collectors, MustRegister at init, a plain
// promhttp.Handler for the mux to mount.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TasksRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ddrive_tasks_running",
			Help: "Whether a backup task is currently executing (1) or the runner is idle (0)",
		},
	)

	TaskRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddrive_task_runs_total",
			Help: "Total backup task runs by outcome",
		},
		[]string{"outcome"},
	)

	TaskRuntimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ddrive_task_runtime_seconds",
			Help:    "Wall-clock duration of completed backup task runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		},
		[]string{"task_id"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ddrive_task_queue_depth",
			Help: "Number of backup tasks currently queued",
		},
	)

	ReconcilerOrphansDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ddrive_reconciler_orphans_deleted_total",
			Help: "Total orphaned blobs deleted by the reconciler's sweep",
		},
	)

	ReconcilerRecycleBinPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ddrive_reconciler_recycle_bin_purged_total",
			Help: "Total nodes permanently purged by the recycle bin retention sweep",
		},
	)

	ChunkUploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ddrive_chunk_upload_bytes_total",
			Help: "Total plaintext bytes accepted by the chunk engine's Store operation",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TasksRunning,
		TaskRunsTotal,
		TaskRuntimeSeconds,
		QueueDepth,
		ReconcilerOrphansDeleted,
		ReconcilerRecycleBinPurged,
		ChunkUploadBytes,
	)
}

// ObserveTaskRun records a completed task run's outcome and runtime.
func ObserveTaskRun(taskID, outcome string, runtime time.Duration) {
	TaskRunsTotal.WithLabelValues(outcome).Inc()
	TaskRuntimeSeconds.WithLabelValues(taskID).Observe(runtime.Seconds())
}
