package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// SpriteBuilder optimizes the vector (and any raster) files of the svg set,
// skipping files whose output is already up to date.
type SpriteBuilder struct {
	builder *Builder
}

func (sb *SpriteBuilder) Name() string { return TaskSprite }

func (sb *SpriteBuilder) Run(ctx context.Context) error {
	b := sb.builder
	reg := b.registry

	files, err := reg.Glob(reg.Patterns(paths.Images, paths.SetSVG))
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

		src := reg.Path(f.Path)
		dst, shown := b.destination(dest, f.Rel())

		stale, err := b.isStale(src, dst)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !stale {
			tlogger.Debug("builder", "sprite", "msg", "up to date", "file", f.Path)
			b.recorder.IncTaskResult(TaskSprite, metrics.ResultSkipped)
			continue
		}

		if err := b.optimize(src, dst); err != nil {
			tlogger.Error("builder", "sprite", "msg", "optimization failed", "file", f.Path, "err", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}
		written = append(written, shown)
	}

	b.notify(paths.Images, written)
	return errs
}

func (b *Builder) optimize(src, dst string) error {
	ext := strings.ToLower(filepath.Ext(src))
	switch ext {
	case ".svg":
		c, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return writeOutput(dst, c, b.minifier, "image/svg+xml")
	case ".png", ".jpg", ".jpeg":
		if b.raster == nil {
			return ErrNoCodec
		}
		c, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		out, err := b.raster.Optimize(ext, c)
		if err != nil {
			return err
		}
		return writeOutput(dst, out, nil, "")
	}
	_, err := copyFile(src, dst)
	return err
}
