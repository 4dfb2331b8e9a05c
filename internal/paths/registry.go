// Package paths holds the static table mapping each asset category to its
// source globs and destination directory.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/toastate/toastpipe/pkg/config"
)

var ErrInvalidRegistry = errors.New("invalid path registry")

type Category string

const (
	HTML    Category = "html"
	Styles  Category = "styles"
	Scripts Category = "scripts"
	Images  Category = "images"
	Fonts   Category = "fonts"
	Video   Category = "video"
)

// Categories lists every category in registry order.
var Categories = []Category{HTML, Styles, Scripts, Images, Fonts, Video}

// Named pattern sets used by the tasks and the watcher.
const (
	SetComponents = "components"
	SetRoot       = "root"
	SetSVG        = "svg"
	SetWebp       = "webp"
)

// PathSpec is immutable once built by New.
type PathSpec struct {
	Category Category
	Sources  []string
	Dest     string
	sets     map[string][]string
}

// Set returns the named pattern set, or nil when it is not defined.
func (p PathSpec) Set(name string) []string {
	return append([]string(nil), p.sets[name]...)
}

// Registry is the path table for one project.
type Registry struct {
	Dir   string // project directory every pattern is relative to
	Root  string // output root, relative to Dir
	specs map[Category]PathSpec
}

// New builds a registry from configuration. Patterns, destinations and the
// output root are slash separated and relative to dir.
func New(dir string, cfg *config.Configuration) (*Registry, error) {
	if cfg.OutputRoot == "" {
		return nil, fmt.Errorf("%w: output root is required", ErrInvalidRegistry)
	}
	if dir == "" {
		dir = "."
	}

	r := &Registry{
		Dir:   dir,
		Root:  filepath.Clean(cfg.OutputRoot),
		specs: make(map[Category]PathSpec, len(Categories)),
	}

	for _, c := range Categories {
		pc, ok := cfg.Paths[string(c)]
		if !ok {
			return nil, fmt.Errorf("%w: category %q is not configured", ErrInvalidRegistry, c)
		}
		if len(pc.Src) == 0 {
			return nil, fmt.Errorf("%w: category %q has no source pattern", ErrInvalidRegistry, c)
		}
		if pc.Dist == "" {
			return nil, fmt.Errorf("%w: category %q has no destination", ErrInvalidRegistry, c)
		}

		for _, p := range allPatterns(pc) {
			if !doublestar.ValidatePattern(strings.TrimPrefix(p, "!")) {
				return nil, fmt.Errorf("%w: category %q has a malformed pattern %q", ErrInvalidRegistry, c, p)
			}
		}

		sets := make(map[string][]string, len(pc.Sets))
		for k, v := range pc.Sets {
			sets[k] = append([]string(nil), v...)
		}

		r.specs[c] = PathSpec{
			Category: c,
			Sources:  append([]string(nil), pc.Src...),
			Dest:     filepath.Clean(pc.Dist),
			sets:     sets,
		}
	}

	return r, nil
}

func allPatterns(pc config.PathConfig) []string {
	out := append([]string(nil), pc.Src...)
	for _, v := range pc.Sets {
		out = append(out, v...)
	}
	return out
}

// Spec returns the entry for c. Every category is present after New.
func (r *Registry) Spec(c Category) PathSpec {
	return r.specs[c]
}

// Patterns returns the named set of c, falling back to its sources when set is empty.
func (r *Registry) Patterns(c Category, set string) []string {
	spec := r.specs[c]
	if v := spec.Set(set); v != nil {
		return v
	}
	return append([]string(nil), spec.Sources...)
}

// Preserved returns the output subdirectories the cleaner keeps, relative to Root.
func (r *Registry) Preserved() []string {
	var out []string
	for _, c := range []Category{Images, Video} {
		rel, err := filepath.Rel(r.Root, r.specs[c].Dest)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		out = append(out, strings.Split(filepath.ToSlash(rel), "/")[0])
	}
	return out
}

// Match reports whether name (slash or OS separated) is selected by patterns.
// A name must match at least one positive pattern and no "!" pattern.
func Match(patterns []string, name string) bool {
	name = filepath.ToSlash(filepath.Clean(name))
	matched := false
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			if ok, _ := doublestar.Match(cleanPattern(neg), name); ok {
				return false
			}
			continue
		}
		if !matched {
			matched, _ = doublestar.Match(cleanPattern(p), name)
		}
	}
	return matched
}

// File is one resolved source file.
type File struct {
	Path string // slash separated, relative to the registry directory
	Base string // static prefix of the pattern that selected the file
}

// Rel is the path of f below its glob base, used to mirror the source layout.
func (f File) Rel() string {
	if f.Base == "" {
		return f.Path
	}
	return strings.TrimPrefix(strings.TrimPrefix(f.Path, f.Base), "/")
}

// Glob resolves patterns below the registry directory in pattern order, sorting
// each pattern's matches lexically and dropping duplicates and directories.
func (r *Registry) Glob(patterns []string) ([]File, error) {
	var (
		negs []string
		out  []File
		seen = map[string]struct{}{}
	)
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			negs = append(negs, cleanPattern(neg))
		}
	}

	fsys := os.DirFS(r.Dir)
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			continue
		}
		p = cleanPattern(p)
		base, _ := doublestar.SplitPattern(p)
		if base == "." {
			base = ""
		}

		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		sort.Strings(matches)

	next:
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			for _, neg := range negs {
				if ok, _ := doublestar.Match(neg, m); ok {
					continue next
				}
			}
			seen[m] = struct{}{}
			out = append(out, File{Path: m, Base: base})
		}
	}

	return out, nil
}

// Path joins a registry relative path onto the registry directory.
func (r *Registry) Path(rel string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(rel))
}

func cleanPattern(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "./")
}
