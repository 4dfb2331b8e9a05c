package builder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// CSSBuilder compiles every SCSS entry point into a single prefixed sheet.
// Files starting with "_" are partials and only reached through imports.
type CSSBuilder struct {
	builder *Builder
}

func (cb *CSSBuilder) Name() string { return TaskStyles }

func (cb *CSSBuilder) Run(ctx context.Context) error {
	b := cb.builder
	reg := b.registry

	if b.styles == nil {
		return fmt.Errorf("styles: %w", ErrNoCodec)
	}

	files, err := reg.Glob(reg.Patterns(paths.Styles, ""))
	if err != nil {
		return err
	}

	var (
		chunks [][]byte
		failed int
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(path.Base(f.Path), "_") {
			continue
		}
		tlogger.Debug("builder", "css", "msg", "processing", "file", f.Path)

		src, err := os.ReadFile(reg.Path(f.Path))
		if err != nil {
			tlogger.Error("builder", "css", "msg", "file error", "file", f.Path, "err", err)
			failed++
			continue
		}

		out, err := b.styles.Compile(reg.Path(f.Path), src)
		if err != nil {
			tlogger.Error("builder", "css", "msg", "compile error", "file", f.Path, "err", err)
			failed++
			continue
		}
		chunks = append(chunks, bytes.TrimRight(replaceWindowsCarriageReturn(out), "\n"))
	}

	if failed > 0 {
		tlogger.Warn("builder", "css", "msg", "stylesheet not written, previous output kept", "failed", failed)
		return nil
	}
	if len(chunks) == 0 {
		tlogger.Debug("builder", "css", "msg", "no stylesheet to build")
		return nil
	}

	sheet, err := b.prefixer.Prefix(bytes.Join(chunks, []byte("\n")))
	if err != nil {
		tlogger.Error("builder", "css", "msg", "prefixer", "err", err)
		return err
	}

	var fw FileWriter
	if b.cfg.Styles.Minify {
		fw = b.minifier
	}

	dst, shown := b.destination(reg.Spec(paths.Styles).Dest, b.cfg.Styles.Output)
	if err := writeOutput(dst, sheet, fw, "text/css"); err != nil {
		tlogger.Error("builder", "css", "msg", "output file creation", "file", dst, "err", err)
		return err
	}

	b.notify(paths.Styles, []string{shown})
	return nil
}
