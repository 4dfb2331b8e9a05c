package builder

import (
	"bytes"
	"context"
	"os"

	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// JSBuilder concatenates the scripts, in match order, into one bundle.
type JSBuilder struct {
	builder *Builder
}

func (jb *JSBuilder) Name() string { return TaskScripts }

func (jb *JSBuilder) Run(ctx context.Context) error {
	b := jb.builder
	reg := b.registry

	files, err := reg.Glob(reg.Patterns(paths.Scripts, ""))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		tlogger.Debug("builder", "js", "msg", "no script to bundle")
		return nil
	}

	parts := make([][]byte, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := os.ReadFile(reg.Path(f.Path))
		if err != nil {
			tlogger.Error("builder", "js", "msg", "file error", "file", f.Path, "err", err)
			return err
		}
		parts = append(parts, replaceWindowsCarriageReturn(c))
	}

	var fw FileWriter
	if b.cfg.Scripts.Minify {
		fw = b.minifier
	}

	dst, shown := b.destination(reg.Spec(paths.Scripts).Dest, b.cfg.Scripts.Output)
	if err := writeOutput(dst, bytes.Join(parts, []byte("\n")), fw, "application/javascript"); err != nil {
		tlogger.Error("builder", "js", "msg", "output file creation", "file", dst, "err", err)
		return err
	}

	b.notify(paths.Scripts, []string{shown})
	return nil
}
