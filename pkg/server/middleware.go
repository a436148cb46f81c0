package server

import (
	"bytes"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/macropower/stitch/pkg/log"
	"github.com/macropower/stitch/pkg/pipeline"
)

// conditionalHeaders are stripped from requests so that cached responses
// never bypass transformation after a data module changed.
var conditionalHeaders = []string{
	"If-Modified-Since",
	"If-None-Match",
	"If-Match",
	"If-Unmodified-Since",
	"If-Range",
}

// MiddlewareOpt configures [Middleware].
type MiddlewareOpt func(m *middleware)

// WithReloadScript injects the reload client into transformed documents.
func WithReloadScript(enabled bool) MiddlewareOpt {
	return func(m *middleware) {
		m.reload = enabled
	}
}

type middleware struct {
	next     http.Handler
	pipeline *pipeline.Pipeline
	reload   bool
}

// Middleware transforms successful text/html responses of next with p.
// Status and headers are left untouched except Content-Length. Other
// responses pass through unchanged.
func Middleware(p *pipeline.Pipeline, opts ...MiddlewareOpt) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		m := &middleware{next: next, pipeline: p}
		for _, opt := range opts {
			opt(m)
		}

		return m
	}
}

func (m *middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.next.ServeHTTP(w, r)

		return
	}

	r = r.Clone(r.Context())
	for _, h := range conditionalHeaders {
		r.Header.Del(h)
	}

	rec := &recorder{header: make(http.Header)}
	m.next.ServeHTTP(rec, r)

	body := rec.body.Bytes()
	if rec.status() == http.StatusOK && isHTML(rec.header) && rec.header.Get("Content-Encoding") == "" {
		body = m.transform(r, rec.header, body)
	}

	for k, v := range rec.header {
		w.Header()[k] = v
	}

	w.WriteHeader(rec.status())

	_, err := w.Write(body)
	if err != nil {
		log.WithContext(r.Context()).DebugContext(r.Context(), "write response",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
}

func (m *middleware) transform(r *http.Request, header http.Header, body []byte) []byte {
	ctx := r.Context()
	docPath := DocumentPath(r.URL.Path)

	res, err := m.pipeline.Transform(ctx, docPath, string(body))
	if err != nil {
		log.WithContext(ctx).ErrorContext(ctx, "transform response",
			slog.String("document", docPath),
			slog.Any("error", err),
		)

		return body
	}

	out := res.HTML
	if m.reload {
		out = InjectReloadScript(out)
	}

	header.Set("Content-Length", strconv.Itoa(len(out)))

	return []byte(out)
}

// DocumentPath maps a request path to a document path. Directory requests
// map to their index.html.
func DocumentPath(urlPath string) string {
	if urlPath == "" || strings.HasSuffix(urlPath, "/") {
		return urlPath + "index.html"
	}

	return urlPath
}

func isHTML(h http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))

	return err == nil && mediaType == "text/html"
}

// recorder buffers a response so it can be transformed before it is sent.
type recorder struct {
	header http.Header
	body   bytes.Buffer
	code   int
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}

	if r.header.Get("Content-Type") == "" {
		r.header.Set("Content-Type", http.DetectContentType(b))
	}

	return r.body.Write(b) //nolint:wrapcheck // bytes.Buffer never fails.
}

func (r *recorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}

	return r.code
}
