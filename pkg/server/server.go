package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/macropower/stitch/pkg/invalidate"
	"github.com/macropower/stitch/pkg/log"
	"github.com/macropower/stitch/pkg/pipeline"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server serves a document root through the transforming [Middleware].
type Server struct {
	pipeline   *pipeline.Pipeline
	controller *invalidate.Controller
	hub        *Hub
	dir        string
	reload     bool
}

// Opt configures a [Server].
type Opt func(s *Server)

// WithController enables live reload driven by c. Without a controller no
// reload script is injected.
func WithController(c *invalidate.Controller) Opt {
	return func(s *Server) {
		s.controller = c
		s.reload = c != nil
	}
}

// New creates a [Server] for the static files in dir.
func New(p *pipeline.Pipeline, dir string, opts ...Opt) *Server {
	s := &Server{
		pipeline: p,
		hub:      NewHub(),
		dir:      dir,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Hub returns the server's reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.reload {
		mux.Handle(ReloadPath, s.hub)
	}

	files := http.FileServer(http.Dir(s.dir))
	mux.Handle("/", Middleware(s.pipeline, WithReloadScript(s.reload))(files))

	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.controller != nil {
		events := make(chan invalidate.Event, 16)
		s.controller.Subscribe(events)

		go s.hub.Run(ctx, events)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	log.WithContext(ctx).InfoContext(ctx, "serving",
		slog.String("url", "http://"+ln.Addr().String()),
		slog.String("dir", s.dir),
		slog.Bool("reload", s.reload),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)

	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
