package builder

import (
	"github.com/toastate/toastpipe/internal/plan"
)

// Plans composes the builder tasks into the named plans. watch may be nil
// for one-shot commands, in which case there is no server plan.
func (b *Builder) Plans(watch plan.Task) (map[string]*plan.Plan, error) {
	set := b.Tasks()
	set.Watch = watch
	return plan.Plans(set)
}
