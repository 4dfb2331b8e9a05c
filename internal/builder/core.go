package builder

import (
	"errors"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/plan"
	"github.com/toastate/toastpipe/internal/transform/fileinclude"
	"github.com/toastate/toastpipe/internal/transform/prefix"
	"github.com/toastate/toastpipe/internal/transform/woff"
	"github.com/toastate/toastpipe/pkg/config"
)

// Task names, as shown by the plans command and in logs.
const (
	TaskClean   = "clean"
	TaskHTML    = "html"
	TaskStyles  = "styles"
	TaskScripts = "scripts"
	TaskImages  = "images"
	TaskSprite  = "sprite"
	TaskFonts   = "fontsWoff"
	TaskVideo   = "video"
)

var ErrNoCodec = errors.New("codec not configured")

// Notifier is told which output files a task wrote, relative to the output root.
type Notifier interface {
	Changed(category paths.Category, files []string)
}

type StyleCompiler interface {
	Compile(filename string, src []byte) ([]byte, error)
}

type RasterCodec interface {
	Webp(src []byte) ([]byte, error)
	Optimize(ext string, src []byte) ([]byte, error)
}

// StaleFunc reports whether dst must be regenerated from src.
type StaleFunc func(src, dst string) (bool, error)

type Options struct {
	Registry *paths.Registry
	Config   *config.Configuration // config.Config when nil

	Styles StyleCompiler
	Raster RasterCodec
	Fonts  func(ttf []byte) ([]byte, error) // woff.Convert when nil

	Notifier Notifier
	IsStale  StaleFunc // IsStale when nil
	Recorder metrics.Recorder
}

type Builder struct {
	registry *paths.Registry
	cfg      *config.Configuration

	includer *fileinclude.Expander
	prefixer *prefix.Prefixer
	minifier FileWriter

	styles   StyleCompiler
	raster   RasterCodec
	fonts    func([]byte) ([]byte, error)
	notifier Notifier
	isStale  StaleFunc
	recorder metrics.Recorder
}

func NewBuilder(opts Options) (*Builder, error) {
	if opts.Registry == nil {
		return nil, errors.New("builder: a path registry is required")
	}

	b := &Builder{
		registry: opts.Registry,
		cfg:      opts.Config,
		styles:   opts.Styles,
		raster:   opts.Raster,
		fonts:    opts.Fonts,
		notifier: opts.Notifier,
		isStale:  opts.IsStale,
		recorder: metrics.Or(opts.Recorder),
		minifier: NewTDMinifier(),
	}
	if b.cfg == nil {
		b.cfg = config.Config
	}
	if b.fonts == nil {
		b.fonts = woff.Convert
	}
	if b.isStale == nil {
		b.isStale = IsStale
	}

	b.includer = fileinclude.New(b.cfg.HTML.IncludePrefix)
	b.prefixer = prefix.New(b.cfg.Styles.Browsers, b.cfg.Styles.Grid)

	return b, nil
}

// Tasks returns the build tasks. Watch is left to the caller.
func (b *Builder) Tasks() plan.TaskSet {
	return plan.TaskSet{
		Clean:   &Cleaner{builder: b},
		HTML:    &HTMLBuilder{builder: b},
		Styles:  &CSSBuilder{builder: b},
		Scripts: &JSBuilder{builder: b},
		Images:  &WebpBuilder{builder: b},
		Sprite:  &SpriteBuilder{builder: b},
		Fonts:   &WoffBuilder{builder: b},
		Video:   &CopyBuilder{builder: b},
	}
}

// Registry returns the path table the builder reads from.
func (b *Builder) Registry() *paths.Registry {
	return b.registry
}

func (b *Builder) notify(c paths.Category, files []string) {
	if b.notifier == nil || len(files) == 0 {
		return
	}
	b.notifier.Changed(c, files)
}
