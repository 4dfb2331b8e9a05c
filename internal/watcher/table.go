package watcher

import (
	"path"
	"path/filepath"

	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/plan"
)

// Table builds the dispatch table of the dev server from the path registry.
// Raster and vector images go to distinct tasks; written pages trigger a reload.
func Table(reg *paths.Registry, set plan.TaskSet) []Binding {
	out := []Binding{
		{Patterns: reg.Patterns(paths.HTML, ""), Task: set.HTML},
		{Patterns: reg.Patterns(paths.HTML, paths.SetComponents), Task: set.HTML},
		{Patterns: reg.Patterns(paths.Styles, paths.SetRoot), Task: set.Styles},
		{Patterns: reg.Patterns(paths.Styles, ""), Task: set.Styles},
		{Patterns: reg.Patterns(paths.Scripts, ""), Task: set.Scripts},
		{Patterns: reg.Patterns(paths.Images, ""), Task: set.Images},
		{Patterns: reg.Patterns(paths.Images, paths.SetSVG), Task: set.Sprite},
		{Patterns: reg.Patterns(paths.Fonts, ""), Task: set.Fonts},
	}

	html := filepath.ToSlash(reg.Spec(paths.HTML).Dest)
	out = append(out, Binding{Patterns: []string{path.Join(html, "*.html")}, Reload: true})

	// categories without a task are not watched
	return filterBound(out)
}

func filterBound(in []Binding) []Binding {
	out := in[:0]
	for _, b := range in {
		if b.Task == nil && !b.Reload {
			continue
		}
		out = append(out, b)
	}
	return out
}
