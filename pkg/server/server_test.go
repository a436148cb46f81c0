package server_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stitch/pkg/data"
	"github.com/macropower/stitch/pkg/invalidate"
	"github.com/macropower/stitch/pkg/pipeline"
	"github.com/macropower/stitch/pkg/rule"
	"github.com/macropower/stitch/pkg/server"
)

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	var event string

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)

		line = strings.TrimRight(line, "\n")
		if line == "" {
			return event
		}

		if name, ok := strings.CutPrefix(line, "event: "); ok {
			event = name
		}
	}
}

func TestServer_Handler(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	site := filepath.Join(root, "site")
	require.NoError(t, os.MkdirAll(filepath.Join(site, "blog"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"),
		[]byte(`<!DOCTYPE html><html><head></head><body><h1 id="t"></h1></body></html>`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(site, "blog", "post.html"),
		[]byte(`<h1 id="t"></h1>`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(site, "app.js"), []byte(`console.log("#t")`), 0o600))

	rules, err := rule.Normalize([]rule.Spec{{
		Selector:   "#t",
		Render:     `"title for " + document`,
		PathIgnore: rule.StringList{"/blog/post.html"},
	}}, root)
	require.NoError(t, err)

	srv := server.New(pipeline.New(rules, data.NewLoader(nil)), site)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	get := func(path string) (int, string) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+path, nil)
		require.NoError(t, err)

		resp, err := ts.Client().Do(req)
		require.NoError(t, err)

		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		return resp.StatusCode, string(b)
	}

	code, body := get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<h1 id="t">title for /index.html</h1>`)
	assert.NotContains(t, body, server.ReloadPath, "no reload without a controller")

	code, body = get("/blog/post.html")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `<h1 id="t"></h1>`, body)

	code, body = get("/app.js")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `console.log("#t")`, body)

	code, _ = get("/missing.html")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(server.ReloadPath)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHub_ServeHTTP(t *testing.T) {
	t.Parallel()

	hub := server.NewHub()
	ts := httptest.NewServer(hub)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	assert.Equal(t, "ready", readEvent(t, r))

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Reload()
	assert.Equal(t, "reload", readEvent(t, r))

	cancel()

	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestServer_LiveReload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	site := filepath.Join(root, "site")
	require.NoError(t, os.MkdirAll(site, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"),
		[]byte(`<html><body><p id="n"></p></body></html>`), 0o600))

	src := filepath.Join(root, "site.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"n": "one"}`), 0o600))

	rules, err := rule.Normalize([]rule.Spec{{
		Selector:    "#n",
		Render:      `data.site.n`,
		DataModules: rule.StringList{"site.json"},
	}}, root)
	require.NoError(t, err)

	cache := data.NewCache()
	controller := invalidate.NewController(cache, rules)
	srv := server.New(pipeline.New(rules, data.NewLoader(cache)), site, server.WithController(controller))

	var lc net.ListenConfig

	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln)
	}()

	base := "http://" + ln.Addr().String()

	get := func(path string) string {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, base+path, nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		return string(b)
	}

	page := get("/")
	assert.Contains(t, page, `<p id="n">one</p>`)
	assert.Contains(t, page, server.ReloadPath)

	streamCtx, streamCancel := context.WithCancel(t.Context())
	defer streamCancel()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, base+server.ReloadPath, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	require.Equal(t, "ready", readEvent(t, r))
	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(src, []byte(`{"n": "two"}`), 0o600))
	controller.Handle(t.Context(), src)

	assert.Equal(t, "reload", readEvent(t, r))
	assert.Contains(t, get("/"), `<p id="n">two</p>`)

	streamCancel()
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
