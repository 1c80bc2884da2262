// ============================================================================
// Metrics - Prometheus Instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Function: Exposes RED (rate/errors/duration) metrics for task execution
//           and USE (utilization) metrics for the worker pool and schedule
//           threads, served over /metrics for Prometheus scraping.
//
// Counters:
//   parallel_tasks_started_total           - a task began executing
//   parallel_tasks_completed_total         - a task's function returned
//   parallel_tasks_dependency_waits_total  - a dependent blocked on an
//                                            upstream monitor
//
// Histogram:
//   parallel_task_dependency_wait_seconds  - time spent blocked on an
//                                            upstream monitor before
//                                            proceeding
//
// Gauges:
//   parallel_pool_slots_busy    - thread-pool slots currently running a job
//                                 (internal/pool does not update it; it
//                                 changes only when a caller sets it)
//   parallel_threads_running    - schedule worker threads currently inside
//                                 their task loop
//
// Both dependency-wait metrics are recorded when a wait returns, so a
// dependent still blocked on an upstream task that never completes is not
// counted in them; the scheduler imposes no timeout (§4.5).
//
// ============================================================================

// Package metrics registers and exposes the Prometheus metrics for the
// schedule runtime and thread pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector this module registers. Construct with
// New, which registers every collector against reg.
type Metrics struct {
	TasksStarted           *prometheus.CounterVec
	TasksCompleted         *prometheus.CounterVec
	TasksDependencyWaits   *prometheus.CounterVec
	TaskDependencyWaitTime *prometheus.HistogramVec

	PoolSlotsBusy  prometheus.Gauge
	ThreadsRunning prometheus.Gauge
}

// New registers a fresh set of collectors against reg and returns them. Pass
// prometheus.NewRegistry() for an isolated registry (tests), or
// prometheus.DefaultRegisterer for the process-wide default.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TasksStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parallel_tasks_started_total",
			Help: "Total number of task functions that began executing.",
		}, []string{"thread", "task"}),

		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parallel_tasks_completed_total",
			Help: "Total number of task functions that returned.",
		}, []string{"thread", "task"}),

		TasksDependencyWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parallel_tasks_dependency_waits_total",
			Help: "Total number of times a dependent task blocked on an upstream monitor.",
		}, []string{"thread", "task"}),

		TaskDependencyWaitTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parallel_task_dependency_wait_seconds",
			Help:    "Time spent blocked on an upstream task's monitor before proceeding.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"thread", "task"}),

		PoolSlotsBusy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parallel_pool_slots_busy",
			Help: "Thread-pool slots currently running a dispatched job.",
		}),

		ThreadsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parallel_threads_running",
			Help: "Schedule worker threads currently inside their task loop.",
		}),
	}
}
