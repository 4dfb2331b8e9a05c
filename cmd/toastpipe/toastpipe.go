package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/toastate/toastpipe/internal/builder"
	"github.com/toastate/toastpipe/internal/helpers"
	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/plan"
	"github.com/toastate/toastpipe/internal/server"
	"github.com/toastate/toastpipe/internal/tlogger"
	"github.com/toastate/toastpipe/internal/transform/sass"
	"github.com/toastate/toastpipe/internal/transform/vips"
	"github.com/toastate/toastpipe/internal/watcher"
	"github.com/toastate/toastpipe/pkg/config"
	pkgserver "github.com/toastate/toastpipe/pkg/server"
)

var CLI struct {
	Build  CommandBuild  `cmd:"" aliases:"b" help:"Cleans the output and builds every asset."`
	Server CommandServer `cmd:"" aliases:"serve,s" help:"Builds, then serves the output with live reload."`
	Fonts  CommandFonts  `cmd:"" help:"Cleans the output and converts the fonts to WOFF."`
	Images CommandImages `cmd:"" help:"Cleans the output and converts raster images to WebP."`
	Video  CommandVideo  `cmd:"" help:"Cleans the output and copies the videos."`
	Plans  CommandPlans  `cmd:"" help:"Prints the plans and the watch table as JSON."`

	ConfigFile string `short:"c" help:"configuration file path (optional)"`
	Verbose    int    `short:"v" type:"counter" help:"Print verbose output."`
}

type CommandBuild struct{}

type CommandServer struct {
	Port int `short:"p" help:"Listener port"`
}

type CommandFonts struct{}

type CommandImages struct{}

type CommandVideo struct{}

type CommandPlans struct{}

func main() {
	ctx := kong.Parse(&CLI, kong.UsageOnError())

	applyVerbose(CLI.Verbose)

	tlogger.FatalIf(config.Init(CLI.ConfigFile), "msg", "Invalid configuration")
	tlogger.FatalIf(ctx.Run(ctx), "msg", "Command failed", "command", ctx.Command())
}

func applyVerbose(v int) {
	switch v {
	case 0:
		tlogger.ApplyLogLevel("info")
	case 1:
		tlogger.ApplyLogLevel("debug")
	default:
		tlogger.ApplyLogLevel("all")
	}
}

type app struct {
	builder  *builder.Builder
	recorder metrics.Recorder
}

// newApp wires the builder. raster starts libvips, which only the image
// tasks need.
func newApp(raster bool, notifier builder.Notifier, rec metrics.Recorder) (*app, error) {
	cfg := config.Config

	reg, err := paths.New(".", cfg)
	if err != nil {
		return nil, err
	}

	opts := builder.Options{
		Registry: reg,
		Config:   cfg,
		Styles:   sass.New(cfg.Styles.OutputStyle, cfg.Styles.IncludePaths),
		Notifier: notifier,
		Recorder: rec,
	}
	if raster {
		vips.Startup()
		opts.Raster = &vips.Codec{
			WebpQuality:    cfg.Images.WebpQuality,
			JpegQuality:    cfg.Images.JpegQuality,
			PngCompression: cfg.Images.PngCompression,
		}
	}

	b, err := builder.NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	return &app{builder: b, recorder: rec}, nil
}

func (a *app) run(name string, watch plan.Task) error {
	plans, err := a.builder.Plans(watch)
	if err != nil {
		return err
	}
	p, err := plan.Lookup(plans, name)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := plan.NewExecutor(a.recorder).Run(ctx, p)
	if err != nil {
		return err
	}
	return report.Err()
}

func runOneShot(name string, raster bool) error {
	a, err := newApp(raster, nil, nil)
	if err != nil {
		return err
	}
	if raster {
		defer vips.Shutdown()
	}
	return a.run(name, nil)
}

func (r *CommandBuild) Run(ctx *kong.Context) error {
	return runOneShot(plan.Build, true)
}

func (r *CommandFonts) Run(ctx *kong.Context) error {
	return runOneShot(plan.Fonts, false)
}

func (r *CommandImages) Run(ctx *kong.Context) error {
	return runOneShot(plan.Images, true)
}

func (r *CommandVideo) Run(ctx *kong.Context) error {
	return runOneShot(plan.Video, false)
}

func (r *CommandServer) Run(ctx *kong.Context) error {
	cfg := config.Config
	if r.Port <= 0 {
		r.Port = cfg.ServeConfig.Port
	}

	var (
		rec     metrics.Recorder = metrics.NoopRecorder{}
		promReg *prom.Registry
	)
	if cfg.ServeConfig.Metrics {
		promReg = prom.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec = metrics.NewPrometheusRecorder(promReg)
	}

	reg, err := paths.New(".", cfg)
	if err != nil {
		return err
	}

	httpServer := server.NewServer(server.Options{
		BuildDir:    reg.Path(reg.Root),
		Port:        strconv.Itoa(r.Port),
		Override404: cfg.ServeConfig.Redirect404,
		Metrics:     promReg,
		Recorder:    rec,
	})

	a, err := newApp(true, httpServer, rec)
	if err != nil {
		return err
	}
	defer vips.Shutdown()

	w, err := watcher.New(watcher.Options{
		Dir:      a.builder.Registry().Dir,
		Bindings: watcher.Table(a.builder.Registry(), a.builder.Tasks()),
		Debounce: time.Duration(cfg.ServeConfig.DebounceMs) * time.Millisecond,
		Reload:   httpServer.TriggerReload,
		Recorder: rec,
	})
	if err != nil {
		return err
	}

	return a.run(plan.Server, pkgserver.NewServer(httpServer, w))
}

type bindingView struct {
	Patterns []string `json:"patterns"`
	Task     string   `json:"task,omitempty"`
	Reload   bool     `json:"reload,omitempty"`
}

func (r *CommandPlans) Run(ctx *kong.Context) error {
	a, err := newApp(false, nil, nil)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Options{
		Dir:      a.builder.Registry().Dir,
		Bindings: watcher.Table(a.builder.Registry(), a.builder.Tasks()),
	})
	if err != nil {
		return err
	}

	plans, err := a.builder.Plans(w)
	if err != nil {
		return err
	}

	out := struct {
		Plans map[string][]any `json:"plans"`
		Watch []bindingView    `json:"watch"`
	}{Plans: map[string][]any{}}

	names := make([]string, 0, len(plans))
	for name := range plans {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.Plans[name] = plans[name].TaskNames()
	}

	for _, b := range w.Bindings() {
		v := bindingView{Patterns: b.Patterns, Reload: b.Reload}
		if b.Task != nil {
			v.Task = b.Task.Name()
		}
		out.Watch = append(out.Watch, v)
	}

	jsm, err := helpers.MarshalJson(out)
	if err != nil {
		return err
	}
	fmt.Print(string(jsm))
	return nil
}
