package plan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/tlogger"
)

type Position string

const (
	PositionSequential Position = "sequential"
	PositionParallel   Position = "parallel"
)

type TaskResult struct {
	Task     string
	Position Position
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Report records one plan execution.
type Report struct {
	RunID string
	Plan  string

	mu      sync.Mutex
	results []TaskResult
}

func (r *Report) add(res TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// Results returns the task results in completion order.
func (r *Report) Results() []TaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TaskResult(nil), r.results...)
}

// Result returns the latest result of the named task.
func (r *Report) Result(task string) (TaskResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.results) - 1; i >= 0; i-- {
		if r.results[i].Task == task {
			return r.results[i], true
		}
	}
	return TaskResult{}, false
}

// Err combines every task failure of the run, nil when all tasks succeeded.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for _, res := range r.results {
		err = multierr.Append(err, res.Err)
	}
	return err
}

// Failed reports whether any task of the run failed.
func (r *Report) Failed() bool { return r.Err() != nil }

// Executor runs plans. The zero value is usable.
type Executor struct {
	Recorder metrics.Recorder
}

func NewExecutor(rec metrics.Recorder) *Executor {
	return &Executor{Recorder: rec}
}

// Run executes p step by step. The returned error is non-nil only when a
// sequential step failed or ctx was cancelled between steps; parallel failures
// are only visible through the report.
func (e *Executor) Run(ctx context.Context, p *Plan) (*Report, error) {
	if p == nil {
		return nil, invalidf("nil plan")
	}

	rec := metrics.Or(e.Recorder)
	report := &Report{RunID: uuid.NewString(), Plan: p.Name}

	tlogger.Info("msg", "Plan started", "plan", p.Name, "run", report.RunID)

	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			rec.IncPlanOutcome(p.Name, false)
			return report, err
		}

		if !step.Parallel {
			t := step.Tasks[0]
			res := e.runTask(ctx, report, t, PositionSequential)
			if res.Err != nil {
				terr := NewTaskError(t.Name(), ErrFatal, res.Err)
				tlogger.Error("msg", "Plan aborted", "plan", p.Name, "run", report.RunID, "task", t.Name(), "err", res.Err)
				rec.IncPlanOutcome(p.Name, false)
				return report, terr
			}
			continue
		}

		var g errgroup.Group
		for _, t := range step.Tasks {
			t := t
			g.Go(func() error {
				res := e.runTask(ctx, report, t, PositionParallel)
				return res.Err
			})
		}
		// siblings keep running on failure, every result is already in the report
		_ = g.Wait()
	}

	failed := report.Failed()
	rec.IncPlanOutcome(p.Name, !failed)
	if failed {
		tlogger.Warn("msg", "Plan finished with task failures", "plan", p.Name, "run", report.RunID, "err", report.Err())
	} else {
		tlogger.Info("msg", "Plan finished", "plan", p.Name, "run", report.RunID)
	}
	return report, nil
}

func (e *Executor) runTask(ctx context.Context, report *Report, t Task, pos Position) TaskResult {
	rec := metrics.Or(e.Recorder)
	name := t.Name()

	tlogger.Debug("msg", "Task started", "task", name, "position", pos)
	start := time.Now()
	err := runSafe(ctx, t)
	res := TaskResult{Task: name, Position: pos, Started: start, Duration: time.Since(start)}

	rec.ObserveTaskDuration(name, res.Duration)
	if err != nil {
		if pos == PositionParallel {
			res.Err = NewTaskError(name, ErrTaskLocal, err)
			tlogger.Error("msg", "Task failed", "task", name, "position", pos, "err", err)
		} else {
			res.Err = err
		}
		rec.IncTaskResult(name, metrics.ResultFailed)
	} else {
		tlogger.Debug("msg", "Task finished", "task", name, "duration", res.Duration)
		rec.IncTaskResult(name, metrics.ResultSuccess)
	}

	report.add(res)
	return res
}

// runSafe turns a panicking task into a failure of that task only.
func runSafe(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx)
}
