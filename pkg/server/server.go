// Package server exposes the development server as the last step of the
// server plan.
package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/toastate/toastpipe/internal/server"
	"github.com/toastate/toastpipe/internal/watcher"
)

// Server serves the output directory and rebuilds on change until its
// context is cancelled.
type Server interface {
	Name() string
	Run(ctx context.Context) error
}

type devServer struct {
	http    *server.Server
	watcher *watcher.Watcher
}

// NewServer pairs the HTTP server with the watcher dispatching rebuilds.
func NewServer(http *server.Server, w *watcher.Watcher) Server {
	return &devServer{http: http, watcher: w}
}

func (d *devServer) Name() string { return d.watcher.Name() }

func (d *devServer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.http.Run(ctx) })
	g.Go(func() error { return d.watcher.Run(ctx) })
	return g.Wait()
}
