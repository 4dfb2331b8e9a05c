package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/paths"
	"github.com/toastate/toastpipe/internal/tlogger"

	_ "embed"
)

//go:embed livereload.html
var liveReloadScript []byte

// Messages pushed to the browser.
const (
	MessageCSS    = "css"
	MessageReload = "reload"
)

const shutdownTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		w.WriteHeader(500)
	},
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Options struct {
	BuildDir    string
	Port        string
	Override404 string
	// Metrics exposes the registry on /__internal/metrics when set.
	Metrics  *prom.Registry
	Recorder metrics.Recorder
}

type Server struct {
	buildDir     string
	port         string
	override404  string
	reloadBroker *Broker
	promRegistry *prom.Registry
	recorder     metrics.Recorder
}

// NewServer returns a server whose broker is already running, so build tasks
// can notify before the listener is up.
func NewServer(opts Options) *Server {
	s := &Server{
		buildDir:     opts.BuildDir,
		port:         opts.Port,
		override404:  opts.Override404,
		reloadBroker: newBroker(),
		promRegistry: opts.Metrics,
		recorder:     metrics.Or(opts.Recorder),
	}
	go s.reloadBroker.Start()
	return s
}

// Changed asks browsers to refresh stylesheets after a styles build and to
// reload the page for anything else.
func (s *Server) Changed(c paths.Category, files []string) {
	msg := MessageReload
	if c == paths.Styles {
		msg = MessageCSS
	}
	tlogger.Debug("server", "livereload", "msg", msg, "category", c, "files", len(files))
	s.publish(msg)
}

// TriggerReload asks browsers to reload the page.
func (s *Server) TriggerReload() {
	s.publish(MessageReload)
}

func (s *Server) publish(msg string) {
	s.recorder.IncReload(msg)
	s.reloadBroker.Publish(msg)
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/__internal/livereload", s.livereloadHandler)
	if s.promRegistry != nil {
		r.Handle("/__internal/metrics", promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}))
	}
	r.PathPrefix("/").HandlerFunc(s.fileServer(s.buildDir, s.override404))
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	// We use println here so the address can be copied or opened directly from the terminal
	fmt.Println("Listening on http://localhost:" + s.port)

	select {
	case err := <-errCh:
		s.reloadBroker.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// hijacked websockets are not tracked by Shutdown, closing the broker releases them
	s.reloadBroker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		tlogger.Warn("server", "shutdown", "msg", "HTTP server shutdown error", "err", err)
		return err
	}
	tlogger.Info("server", "shutdown", "msg", "Server stopped")
	return nil
}

func (s *Server) fileServer(dir string, override404 string) func(http.ResponseWriter, *http.Request) {
	if override404 != "" && !strings.HasPrefix(override404, "/") {
		override404 = "/" + override404
	}

	return func(w http.ResponseWriter, r *http.Request) {
		upath := r.URL.Path
		if !strings.HasPrefix(upath, "/") {
			upath = "/" + upath
		}

		fullName, ok, err := resolve(dir, upath)
		if err == nil && !ok && override404 != "" && upath != override404 {
			fullName, ok, err = resolve(dir, override404)
		}
		if err != nil {
			w.WriteHeader(500)
			w.Write([]byte("Internal error: can't open file: " + err.Error()))
			return
		}
		if !ok {
			w.WriteHeader(404)
			w.Write([]byte("404 page not found"))
			return
		}

		content, err := os.Open(fullName)
		if err != nil {
			w.WriteHeader(500)
			w.Write([]byte("Internal error: can't open file"))
			return
		}
		defer content.Close()

		ctype := mime.TypeByExtension(filepath.Ext(fullName))
		if ctype == "" {
			// read a chunk to decide between utf-8 text and binary
			var buf [512]byte
			n, _ := io.ReadFull(content, buf[:])
			ctype = http.DetectContentType(buf[:n])
			_, err := content.Seek(0, io.SeekStart) // rewind to output whole file
			if err != nil {
				w.WriteHeader(500)
				w.Write([]byte("Internal error: can't seek file: " + err.Error()))
				return
			}
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "no-cache")
		io.Copy(w, content)
		if strings.HasPrefix(ctype, "text/html") {
			_, err = w.Write(liveReloadScript)
			if err != nil {
				tlogger.Error("server", "livereload", "msg", "could not live reload", "err", err)
			}
		}
	}
}

// resolve maps a URL path to a file below dir, trying name, name.html and
// name/index.html in that order.
func resolve(dir, upath string) (string, bool, error) {
	const indexPage = "index.html"

	clean := path.Clean(upath)
	fullName := filepath.Join(dir, filepath.FromSlash(clean))
	candidates := []string{fullName, fullName + ".html", filepath.Join(fullName, indexPage)}
	if clean == "/" {
		candidates = candidates[2:]
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
				continue
			}
			return "", false, err
		}
		if info.IsDir() {
			continue
		}
		return c, true, nil
	}
	return "", false, nil
}

func (s *Server) livereloadHandler(w http.ResponseWriter, r *http.Request) {
	tlogger.Debug("server", "livereload", "msg", "WS Established")

	// subscribe before the handshake completes so no message is missed
	waitCh := s.reloadBroker.Subscribe()
	defer s.reloadBroker.Unsubscribe(waitCh)

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-waitCh:
			if !ok {
				return
			}
			err = c.WriteMessage(websocket.TextMessage, []byte(msg))
			if err != nil {
				tlogger.Warn("server", "livereload", "msg", "Reload socket error", "err", err)
				return
			}
			if msg == MessageReload {
				return
			}
		}
	}
}
