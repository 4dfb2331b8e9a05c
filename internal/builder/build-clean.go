package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/toastate/toastpipe/internal/tlogger"
)

// Cleaner empties the output root, keeping the image and video directories.
type Cleaner struct {
	builder *Builder
}

func (c *Cleaner) Name() string { return TaskClean }

func (c *Cleaner) Run(ctx context.Context) error {
	reg := c.builder.registry
	if filepath.Clean(reg.Root) == "." {
		return errors.New("refusing to clean the project directory, set an output root")
	}

	root := reg.Path(filepath.ToSlash(reg.Root))
	if err := os.MkdirAll(root, 0755); err != nil {
		tlogger.Error("builder", "clean", "msg", "Failed to create build folder", "path", root, "err", err)
		return err
	}

	keep := map[string]struct{}{}
	for _, p := range reg.Preserved() {
		keep[p] = struct{}{}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := keep[e.Name()]; ok {
			tlogger.Debug("builder", "clean", "msg", "kept", "path", e.Name())
			continue
		}
		p := filepath.Join(root, e.Name())
		if err := removeAll(p); err != nil {
			tlogger.Error("builder", "clean", "msg", "Failed to remove build entry", "path", p, "err", err)
			return fmt.Errorf("clean %s: %w", p, err)
		}
	}

	tlogger.Debug("builder", "clean", "msg", "output cleaned", "path", root)
	return nil
}
