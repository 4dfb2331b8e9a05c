package plan

import "fmt"

// Plan names exposed on the command line.
const (
	Build  = "build"
	Server = "server"
	Fonts  = "fonts"
	Images = "images"
	Video  = "video"
)

// TaskSet holds the concrete tasks the plans are made of. Watch may be nil,
// in which case the server plan is not built.
type TaskSet struct {
	Clean   Task
	HTML    Task
	Styles  Task
	Scripts Task
	Images  Task
	Sprite  Task
	Fonts   Task
	Video   Task
	Watch   Task
}

// Plans builds every named plan out of set.
func Plans(set TaskSet) (map[string]*Plan, error) {
	out := map[string]*Plan{}

	add := func(name string, steps ...Step) error {
		p, err := New(name, steps...)
		if err != nil {
			return err
		}
		out[name] = p
		return nil
	}

	buildSteps := func() []Step {
		return []Step{
			Series(set.Clean),
			Series(set.HTML),
			Parallel(set.Styles, set.Scripts, set.Images, set.Sprite, set.Fonts),
		}
	}

	if err := add(Build, buildSteps()...); err != nil {
		return nil, err
	}
	if set.Watch != nil {
		if err := add(Server, append(buildSteps(), Series(set.Watch))...); err != nil {
			return nil, err
		}
	}
	if err := add(Fonts, Series(set.Clean), Parallel(set.Fonts)); err != nil {
		return nil, err
	}
	if err := add(Images, Series(set.Clean), Series(set.Images)); err != nil {
		return nil, err
	}
	if set.Video != nil {
		if err := add(Video, Series(set.Clean), Series(set.Video)); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Lookup returns the named plan.
func Lookup(plans map[string]*Plan, name string) (*Plan, error) {
	p, ok := plans[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidPlan, name)
	}
	return p, nil
}
