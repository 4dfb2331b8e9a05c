package plan

import (
	"errors"
	"fmt"
)

// Failure kinds. A TaskError unwraps to its kind and to the task's own error.
var (
	ErrFatal         = errors.New("fatal sequential failure")
	ErrTaskLocal     = errors.New("task local failure")
	ErrWatchDispatch = errors.New("watch dispatch failure")
	ErrInvalidPlan   = errors.New("invalid plan")
)

type TaskError struct {
	Task string
	Kind error
	Err  error
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: task %q: %v", e.Kind, e.Task, e.Err)
}

func (e *TaskError) Unwrap() []error { return []error{e.Kind, e.Err} }

// NewTaskError wraps err as a failure of the named task.
func NewTaskError(task string, kind, err error) *TaskError {
	return &TaskError{Task: task, Kind: kind, Err: err}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, fmt.Sprintf(format, args...))
}
