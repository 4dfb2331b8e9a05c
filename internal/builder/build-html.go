package builder

import (
	"context"
	"fmt"

	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// HTMLBuilder expands include directives of the top level pages.
type HTMLBuilder struct {
	builder *Builder
}

func (hb *HTMLBuilder) Name() string { return TaskHTML }

func (hb *HTMLBuilder) Run(ctx context.Context) error {
	b := hb.builder
	reg := b.registry

	files, err := reg.Glob(reg.Patterns(paths.HTML, ""))
	if err != nil {
		return err
	}

	var fw FileWriter
	if b.cfg.HTML.Minify {
		fw = b.minifier
	}

	dest := reg.Spec(paths.HTML).Dest
	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		tlogger.Debug("builder", "html", "msg", "processing", "file", f.Path)

		out, err := b.includer.ExpandFile(reg.Path(f.Path))
		if err != nil {
			tlogger.Error("builder", "html", "msg", "include error", "file", f.Path, "err", err)
			return fmt.Errorf("%s: %w", f.Path, err)
		}

		dst, shown := b.destination(dest, f.Rel())
		if err := writeOutput(dst, out, fw, "text/html"); err != nil {
			tlogger.Error("builder", "html", "msg", "output file creation", "file", dst, "err", err)
			return err
		}
		written = append(written, shown)
	}

	b.notify(paths.HTML, written)
	return nil
}
