// Package plan composes tasks into named plans of sequential and parallel
// steps and executes them.
//
// A sequential step must complete before the next step starts and its failure
// aborts the plan. Tasks of a parallel step start together; a failure there is
// logged and recorded but does not stop its siblings or the plan.
package plan

import "context"

// Task is a named, side-effecting unit of work. Runs are idempotent over the
// task's inputs.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(context.Context) error
}

func (t *funcTask) Name() string                  { return t.name }
func (t *funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// TaskFunc adapts fn to a Task.
func TaskFunc(name string, fn func(context.Context) error) Task {
	return &funcTask{name: name, fn: fn}
}

type Step struct {
	Tasks    []Task
	Parallel bool
}

// Series is a sequential-position step.
func Series(t Task) Step { return Step{Tasks: []Task{t}} }

// Parallel is a parallel-position step.
func Parallel(ts ...Task) Step { return Step{Tasks: ts, Parallel: true} }

// Plan is built once and executed once per invocation.
type Plan struct {
	Name  string
	Steps []Step
}

// New validates the steps and returns the plan.
func New(name string, steps ...Step) (*Plan, error) {
	if name == "" {
		return nil, invalidf("plan name is required")
	}
	if len(steps) == 0 {
		return nil, invalidf("plan %q has no steps", name)
	}

	seen := map[string]struct{}{}
	for i, s := range steps {
		if len(s.Tasks) == 0 {
			return nil, invalidf("plan %q: step %d is empty", name, i)
		}
		if !s.Parallel && len(s.Tasks) != 1 {
			return nil, invalidf("plan %q: sequential step %d holds %d tasks", name, i, len(s.Tasks))
		}
		for _, t := range s.Tasks {
			if t == nil {
				return nil, invalidf("plan %q: step %d holds a nil task", name, i)
			}
			if _, ok := seen[t.Name()]; ok {
				return nil, invalidf("plan %q: task %q appears twice", name, t.Name())
			}
			seen[t.Name()] = struct{}{}
		}
	}

	return &Plan{Name: name, Steps: steps}, nil
}

// TaskNames lists the plan's tasks step by step, parallel groups in brackets.
func (p *Plan) TaskNames() []any {
	out := make([]any, 0, len(p.Steps))
	for _, s := range p.Steps {
		if !s.Parallel {
			out = append(out, s.Tasks[0].Name())
			continue
		}
		group := make([]string, 0, len(s.Tasks))
		for _, t := range s.Tasks {
			group = append(group, t.Name())
		}
		out = append(out, group)
	}
	return out
}
