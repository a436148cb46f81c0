package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"

	"github.com/macropower/stitch/pkg/invalidate"
	"github.com/macropower/stitch/pkg/log"
	"github.com/macropower/stitch/pkg/pipeline"
	"github.com/macropower/stitch/pkg/version"
)

const (
	name         = "stitch"
	instructions = `MCP Server 'stitch' renders data-driven fragments into static HTML documents.

Each module group pairs a CSS selector with a render expression and a list of data source files. When a document is rendered, every module group that applies to the document's path loads its data, renders its fragment, and replaces the matched elements.

Workflow:
1. Use 'list_rules' to see the configured module groups, their selectors and their data sources.
2. Use 'render_document' with a document path (e.g. "/index.html") to see the transformed document and per-rule outcomes. Pass 'html' to render a draft instead of the file on disk.
3. After editing a data source, call 'invalidate' with its path before rendering again.
`
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var tracer = otel.Tracer("github.com/macropower/stitch/pkg/mcp")

// Server is an MCP server for one stitch project.
type Server struct {
	pipeline   *pipeline.Pipeline
	controller *invalidate.Controller
	server     *mcp.Server
	root       string
	dir        string
	address    string
}

// Opt configures a [Server].
type Opt func(s *Server)

// WithAddress serves streamable HTTP on addr instead of stdio.
func WithAddress(addr string) Opt {
	return func(s *Server) {
		s.address = addr
	}
}

// WithController routes invalidations through c, so that live-reload
// subscribers are notified too.
func WithController(c *invalidate.Controller) Opt {
	return func(s *Server) {
		s.controller = c
	}
}

// NewServer creates a [Server]. Data source paths are resolved against root
// and documents are read from dir.
func NewServer(p *pipeline.Pipeline, root, dir string, opts ...Opt) *Server {
	s := &Server{
		pipeline: p,
		root:     root,
		dir:      dir,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}, &mcp.ServerOptions{
		Instructions: instructions,
	})

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_rules",
		Description: "List the configured module groups: selector, data sources, path filters, and whether the element itself is replaced.",
	}, WithTracing(tracer, s.handleListRules))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "render_document",
		Description: "Render a document through every applicable module group. Returns the transformed HTML and the replacement count or error of each rule.",
	}, WithTracing(tracer, s.handleRenderDocument))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "invalidate",
		Description: "Drop cached data sources so they are read again on the next render.",
	}, WithTracing(tracer, s.handleInvalidate))
}

// Server returns the underlying MCP server.
func (s *Server) Server() *mcp.Server {
	return s.server
}

// Serve runs the server until ctx is done or the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	log.WithContext(ctx).InfoContext(ctx, "starting MCP server",
		slog.String("address", s.address),
	)

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.address, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := &mcp.LoggingTransport{Transport: &mcp.StdioTransport{}, Writer: os.Stderr}

	err := s.server.Run(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
