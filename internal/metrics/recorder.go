// Package metrics records task and dev-server activity. The Prometheus
// implementation is exposed by the dev server; one-shot builds use NoopRecorder.
package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder is safe for concurrent use by parallel tasks.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result ResultLabel)
	IncPlanOutcome(plan string, success bool)
	IncWatchDispatch(task string)
	IncReload(kind string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)         {}
func (NoopRecorder) IncPlanOutcome(string, bool)               {}
func (NoopRecorder) IncWatchDispatch(string)                   {}
func (NoopRecorder) IncReload(string)                          {}

// Or returns r, or a NoopRecorder when r is nil.
func Or(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
