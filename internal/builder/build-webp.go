package builder

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// WebpBuilder converts raster images to WebP next to the optimized originals.
type WebpBuilder struct {
	builder *Builder
}

func (wb *WebpBuilder) Name() string { return TaskImages }

func (wb *WebpBuilder) Run(ctx context.Context) error {
	b := wb.builder
	reg := b.registry

	if b.raster == nil {
		return fmt.Errorf("images: %w", ErrNoCodec)
	}

	files, err := reg.Glob(reg.Patterns(paths.Images, paths.SetWebp))
	if err != nil {
		return err
	}

	dest := reg.Spec(paths.Images).Dest
	var (
		errs    error
		written []string
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		tlogger.Debug("builder", "webp", "msg", "processing", "file", f.Path)

		src, err := os.ReadFile(reg.Path(f.Path))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out, err := b.raster.Webp(src)
		if err != nil {
			tlogger.Error("builder", "webp", "msg", "conversion failed", "file", f.Path, "err", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}

		dst, shown := b.destination(dest, replaceExt(f.Rel(), ".webp"))
		if err := writeOutput(dst, out, nil, ""); err != nil {
			tlogger.Error("builder", "webp", "msg", "output file creation", "file", dst, "err", err)
			errs = multierr.Append(errs, err)
			continue
		}
		written = append(written, shown)
	}

	b.notify(paths.Images, written)
	return errs
}
