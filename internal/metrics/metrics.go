package metrics

import (
	"time"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/avivheldman/WorkFlow/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var _ service.Metrics = (*Recorder)(nil)

// Recorder exports workflow engine events as Prometheus metrics.
type Recorder struct {
	registry *prometheus.Registry

	workflowsStarted  prometheus.Counter
	workflowsFinished *prometheus.CounterVec
	workflowDuration  *prometheus.HistogramVec
	activeWorkflows   prometheus.Gauge
	tasksFinished     *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	admissionRejected prometheus.Counter
}

// NewRecorder registers the engine metrics plus the Go and process
// collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		workflowsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "started_total",
			Help:      "Workflows whose execution started.",
		}),
		workflowsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "finished_total",
			Help:      "Workflows that reached a final status.",
		}, []string{"status"}),
		workflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Name:      "duration_seconds",
			Help:      "Wall time of workflow executions.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"status"}),
		activeWorkflows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "workflow",
			Name:      "active",
			Help:      "Workflows currently executing.",
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Subsystem: "task",
			Name:      "finished_total",
			Help:      "Tasks that reached a terminal status.",
		}, []string{"task", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Subsystem: "task",
			Name:      "duration_seconds",
			Help:      "Wall time of task executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		admissionRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "admission_rejected_total",
			Help:      "Workflows rejected because the concurrency limit was reached.",
		}),
	}
	r.registry.MustRegister(
		r.workflowsStarted,
		r.workflowsFinished,
		r.workflowDuration,
		r.activeWorkflows,
		r.tasksFinished,
		r.taskDuration,
		r.admissionRejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the registry for the /metrics handler.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Recorder) WorkflowStarted() {
	r.workflowsStarted.Inc()
	r.activeWorkflows.Inc()
}

func (r *Recorder) WorkflowFinished(status models.Status, elapsed time.Duration) {
	r.activeWorkflows.Dec()
	r.workflowsFinished.WithLabelValues(string(status)).Inc()
	r.workflowDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

func (r *Recorder) TaskFinished(name string, status models.Status, elapsed time.Duration) {
	r.tasksFinished.WithLabelValues(name, string(status)).Inc()
	r.taskDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (r *Recorder) AdmissionRejected() {
	r.admissionRejected.Inc()
}
