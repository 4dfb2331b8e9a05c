package builder

import (
	"context"

	"go.uber.org/multierr"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// CopyBuilder copies video files as they are, skipping up to date outputs.
type CopyBuilder struct {
	builder *Builder
}

func (cp *CopyBuilder) Name() string { return TaskVideo }

func (cp *CopyBuilder) Run(ctx context.Context) error {
	b := cp.builder
	reg := b.registry

	files, err := reg.Glob(reg.Patterns(paths.Video, ""))
	if err != nil {
		return err
	}

	dest := reg.Spec(paths.Video).Dest
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
			b.recorder.IncTaskResult(TaskVideo, metrics.ResultSkipped)
			continue
		}

		if _, err := copyFile(src, dst); err != nil {
			tlogger.Error("builder", "copy", "msg", "copy failed", "file", f.Path, "err", err)
			errs = multierr.Append(errs, err)
			continue
		}
		written = append(written, shown)
	}

	b.notify(paths.Video, written)
	return errs
}
