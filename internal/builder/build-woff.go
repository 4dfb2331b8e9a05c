package builder

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// WoffBuilder converts TrueType fonts to WOFF.
type WoffBuilder struct {
	builder *Builder
}

func (wb *WoffBuilder) Name() string { return TaskFonts }

func (wb *WoffBuilder) Run(ctx context.Context) error {
	b := wb.builder
	reg := b.registry

	files, err := reg.Glob(reg.Patterns(paths.Fonts, ""))
	if err != nil {
		return err
	}

	dest := reg.Spec(paths.Fonts).Dest
	var (
		errs    error
		written []string
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		tlogger.Debug("builder", "woff", "msg", "processing", "file", f.Path)

		ttf, err := os.ReadFile(reg.Path(f.Path))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out, err := b.fonts(ttf)
		if err != nil {
			tlogger.Error("builder", "woff", "msg", "conversion failed", "file", f.Path, "err", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}

		dst, shown := b.destination(dest, replaceExt(f.Rel(), ".woff"))
		if err := writeOutput(dst, out, nil, ""); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		written = append(written, shown)
	}

	b.notify(paths.Fonts, written)
	return errs
}
