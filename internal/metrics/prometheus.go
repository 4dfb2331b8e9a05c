package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration *prom.HistogramVec
	taskResults  *prom.CounterVec
	planOutcome  *prom.CounterVec
	dispatches   *prom.CounterVec
	reloads      *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "toastpipe",
			Name:      "task_duration_seconds",
			Help:      "Duration of individual pipeline task runs",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "toastpipe",
			Name:      "task_results_total",
			Help:      "Task run counts by outcome",
		}, []string{"task", "result"}),
		planOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "toastpipe",
			Name:      "plan_outcomes_total",
			Help:      "Plan executions by final status",
		}, []string{"plan", "outcome"}),
		dispatches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "toastpipe",
			Name:      "watch_dispatches_total",
			Help:      "Tasks re-run because a watched source changed",
		}, []string{"task"}),
		reloads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "toastpipe",
			Name:      "livereload_broadcasts_total",
			Help:      "Live reload notifications pushed to browsers",
		}, []string{"kind"}),
	}
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.planOutcome, pr.dispatches, pr.reloads)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	if p == nil {
		return
	}
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(task string, result ResultLabel) {
	if p == nil {
		return
	}
	p.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) IncPlanOutcome(plan string, success bool) {
	if p == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "success"
	}
	p.planOutcome.WithLabelValues(plan, outcome).Inc()
}

func (p *PrometheusRecorder) IncWatchDispatch(task string) {
	if p == nil {
		return
	}
	p.dispatches.WithLabelValues(task).Inc()
}

func (p *PrometheusRecorder) IncReload(kind string) {
	if p == nil {
		return
	}
	p.reloads.WithLabelValues(kind).Inc()
}
