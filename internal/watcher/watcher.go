// Package watcher maps source file changes to the single task that rebuilds
// them, and reloads the browser when served pages change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/plan"
	"github.com/toastate/toastpipe/internal/tlogger"
)

var ErrConflictingBinding = errors.New("conflicting watch binding")

const DefaultDebounce = 300 * time.Millisecond

// Binding ties a set of patterns to the task rebuilding them. A reload-only
// binding has no task and asks connected browsers to reload.
type Binding struct {
	Patterns []string
	Task     plan.Task
	Reload   bool
}

// Name is the bound task name, or "reload".
func (b Binding) Name() string {
	if b.Task == nil {
		return "reload"
	}
	return b.Task.Name()
}

type Options struct {
	Dir      string // watched recursively, patterns are relative to it
	Bindings []Binding
	Debounce time.Duration
	Reload   func()
	Recorder metrics.Recorder
}

type taskState struct {
	task      plan.Task
	debounced func(func())

	mu      sync.Mutex
	running bool
	pending bool
}

type Watcher struct {
	dir      string
	bindings []Binding
	reload   func()
	rec      metrics.Recorder

	states         map[string]*taskState
	reloadDebounce func(func())

	wg sync.WaitGroup
}

// New validates the bindings. A pattern may only be bound to one task.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w := &Watcher{
		dir:            opts.Dir,
		bindings:       opts.Bindings,
		reload:         opts.Reload,
		rec:            metrics.Or(opts.Recorder),
		states:         map[string]*taskState{},
		reloadDebounce: debounce.New(opts.Debounce),
	}

	owners := map[string]string{}
	for _, b := range opts.Bindings {
		if b.Task == nil && !b.Reload {
			return nil, fmt.Errorf("%w: patterns %v have neither task nor reload", ErrConflictingBinding, b.Patterns)
		}
		if len(b.Patterns) == 0 {
			return nil, fmt.Errorf("%w: %s binding has no pattern", ErrConflictingBinding, b.Name())
		}
		for _, p := range b.Patterns {
			if owner, ok := owners[p]; ok && owner != b.Name() {
				return nil, fmt.Errorf("%w: %q is bound to %s and %s", ErrConflictingBinding, p, owner, b.Name())
			}
			owners[p] = b.Name()
		}
		if b.Task != nil {
			if _, ok := w.states[b.Task.Name()]; !ok {
				w.states[b.Task.Name()] = &taskState{task: b.Task, debounced: debounce.New(opts.Debounce)}
			}
		}
	}

	return w, nil
}

// Bindings returns the dispatch table.
func (w *Watcher) Bindings() []Binding {
	return append([]Binding(nil), w.bindings...)
}

// Resolve returns the distinct tasks bound to rel, a path relative to the
// watched directory, and whether a reload-only binding matched.
func (w *Watcher) Resolve(rel string) ([]plan.Task, bool) {
	var (
		tasks  []plan.Task
		reload bool
	)
	for _, b := range w.bindings {
		if !paths.Match(b.Patterns, rel) {
			continue
		}
		if b.Task != nil {
			tasks = append(tasks, b.Task)
		}
		if b.Reload {
			reload = true
		}
	}
	tasks = lo.UniqBy(tasks, func(t plan.Task) string { return t.Name() })
	return tasks, reload
}

// Dispatch schedules the tasks bound to rel. Runs are debounced per task and
// a task never runs twice at once: a change during a run queues one rerun.
func (w *Watcher) Dispatch(ctx context.Context, rel string) {
	tasks, reload := w.Resolve(rel)
	for _, t := range tasks {
		st := w.states[t.Name()]
		tlogger.Debug("watcher", "dispatch", "file", rel, "task", t.Name())
		st.debounced(func() { w.trigger(ctx, st) })
	}
	if reload && w.reload != nil {
		w.reloadDebounce(w.reload)
	}
}

func (w *Watcher) trigger(ctx context.Context, st *taskState) {
	if ctx.Err() != nil {
		return
	}
	st.mu.Lock()
	if st.running {
		st.pending = true
		st.mu.Unlock()
		return
	}
	st.running = true
	st.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			w.run(ctx, st.task)

			st.mu.Lock()
			if st.pending && ctx.Err() == nil {
				st.pending = false
				st.mu.Unlock()
				continue
			}
			st.pending = false
			st.running = false
			st.mu.Unlock()
			return
		}
	}()
}

func (w *Watcher) run(ctx context.Context, t plan.Task) {
	w.rec.IncWatchDispatch(t.Name())
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.Run(ctx)
	}()

	w.rec.ObserveTaskDuration(t.Name(), time.Since(start))
	if err != nil {
		w.rec.IncTaskResult(t.Name(), metrics.ResultFailed)
		tlogger.Error("watcher", "dispatch", "msg", "Task failed", "err", plan.NewTaskError(t.Name(), plan.ErrWatchDispatch, err))
		return
	}
	w.rec.IncTaskResult(t.Name(), metrics.ResultSuccess)
	tlogger.Info("watcher", "dispatch", "msg", "Task rebuilt", "task", t.Name(), "duration", time.Since(start))
}

// Wait blocks until the task runs already started have returned.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// Name makes the watcher usable as the last step of the server plan.
func (w *Watcher) Name() string { return "watch" }

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.dir); err != nil {
		return err
	}
	tlogger.Info("watcher", "start", "msg", "Watching for changes", "path", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.Wait()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			tlogger.Warn("watcher", "fsnotify", "msg", "watcher error", "err", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(fw, ev.Name)
			return
		}
	}

	rel, err := filepath.Rel(w.dir, ev.Name)
	if err != nil {
		return
	}
	tlogger.Debug("watcher", "event", "path", rel, "op", ev.Op.String())
	w.Dispatch(ctx, filepath.ToSlash(rel))
}

func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			tlogger.Warn("watcher", "add", "msg", "watch add failed", "dir", path, "err", err)
		}
		return nil
	})
}

// shouldIgnoreEvent skips hidden files and editor swap files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
