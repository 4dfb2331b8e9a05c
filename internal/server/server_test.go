package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/paths"
)

func buildDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":      "<html><body>home</body></html>",
		"about.html":      "<html><body>about</body></html>",
		"blog/index.html": "<html><body>blog</body></html>",
		"style.css":       "body{margin:0}",
		"404.html":        "<html><body>lost</body></html>",
		"image/logo.webp": "RIFF",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return dir
}

func get(t *testing.T, ts *httptest.Server, p string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + p)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.reloadBroker.Stop()
		ts.Close()
	})
	return s, ts
}

func TestFileServerResolvesPages(t *testing.T) {
	_, ts := newTestServer(t, Options{BuildDir: buildDir(t)})

	cases := map[string]string{
		"/":           "home",
		"/index.html": "home",
		"/about":      "about",
		"/blog/":      "blog",
		"/blog":       "blog",
	}
	for p, want := range cases {
		resp, body := get(t, ts, p)
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.True(t, strings.HasPrefix(body, "<html><body>"+want), p)
		assert.Contains(t, body, "/__internal/livereload", p)
		assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"), p)
	}
}

func TestFileServerLeavesAssetsAlone(t *testing.T) {
	_, ts := newTestServer(t, Options{BuildDir: buildDir(t)})

	resp, body := get(t, ts, "/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body{margin:0}", body)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/css"))
}

func TestNotFound(t *testing.T) {
	_, ts := newTestServer(t, Options{BuildDir: buildDir(t)})
	resp, body := get(t, ts, "/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "404 page not found", body)

	resp, _ = get(t, ts, "/style.css/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOverride404(t *testing.T) {
	_, ts := newTestServer(t, Options{BuildDir: buildDir(t), Override404: "404.html"})
	resp, body := get(t, ts, "/missing/page")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body, "<html><body>lost"))
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/__internal/livereload"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func read(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := c.ReadMessage()
	require.NoError(t, err)
	return string(msg)
}

func TestLiveReloadMessages(t *testing.T) {
	s, ts := newTestServer(t, Options{BuildDir: buildDir(t)})

	c := dial(t, ts)
	s.Changed(paths.Styles, []string{"style.css"})
	assert.Equal(t, MessageCSS, read(t, c))

	// the socket stays open after a stylesheet refresh
	s.Changed(paths.HTML, []string{"index.html"})
	assert.Equal(t, MessageReload, read(t, c))

	other := dial(t, ts)
	s.TriggerReload()
	assert.Equal(t, MessageReload, read(t, other))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	s, ts := newTestServer(t, Options{BuildDir: buildDir(t), Metrics: reg, Recorder: rec})

	s.Changed(paths.Scripts, []string{"script.js"})

	resp, body := get(t, ts, "/__internal/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `toastpipe_livereload_broadcasts_total{kind="reload"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	_, ts := newTestServer(t, Options{BuildDir: buildDir(t)})
	resp, _ := get(t, ts, "/__internal/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := NewServer(Options{BuildDir: buildDir(t), Port: "0"})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestBrokerFanOut(t *testing.T) {
	b := newBroker()
	go b.Start()
	defer b.Stop()

	a, c := b.Subscribe(), b.Subscribe()
	b.Publish("reload")
	assert.Equal(t, "reload", <-a)
	assert.Equal(t, "reload", <-c)

	b.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)

	b.Stop()
	_, open = <-c
	assert.False(t, open)
	// publishing after stop does not block
	b.Publish("reload")
}
