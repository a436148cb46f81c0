package data

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/macropower/stitch/pkg/log"
)

var tracer = otel.Tracer("github.com/macropower/stitch/pkg/data")

// Key returns the merge key for a data module path: its base name without
// extension.
func Key(p string) string {
	base := filepath.Base(p)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Loader reads data modules through a [Cache].
type Loader struct {
	cache    *Cache
	decoders map[string]DecodeFunc
	group    singleflight.Group
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(l *Loader)

// WithDecoder registers fn for files with extension ext (including the dot).
func WithDecoder(ext string, fn DecodeFunc) LoaderOpt {
	return func(l *Loader) {
		l.decoders[strings.ToLower(ext)] = fn
	}
}

// NewLoader creates a [Loader] backed by cache. A nil cache gets a fresh one.
func NewLoader(cache *Cache, opts ...LoaderOpt) *Loader {
	if cache == nil {
		cache = NewCache()
	}

	l := &Loader{
		cache:    cache,
		decoders: DefaultDecoders(),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Cache returns the loader's cache.
func (l *Loader) Cache() *Cache {
	return l.cache
}

// Load returns the merged data object for paths. Each path's value is
// exposed under [Key]. The first failing path aborts the load with a
// [*LoadError]. Paths sharing a key are rejected with [ErrDuplicateKey]
// before anything is read; rule normalization reports the same sentinel as
// a configuration error.
func (l *Loader) Load(ctx context.Context, paths []string) (map[string]any, error) {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		key := Key(p)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w %q: %s", ErrDuplicateKey, key, p)
		}

		seen[key] = struct{}{}
	}

	merged := make(map[string]any, len(paths))
	for _, p := range paths {
		v, err := l.LoadFile(ctx, p)
		if err != nil {
			return nil, err
		}

		merged[Key(p)] = v
	}

	return merged, nil
}

// LoadFile returns the decoded value of a single data module, reading it
// only on a cache miss.
func (l *Loader) LoadFile(ctx context.Context, p string) (any, error) {
	p, err := filepath.Abs(p)
	if err != nil {
		return nil, &LoadError{Path: p, Err: err}
	}

	if v, ok := l.cache.Get(p); ok {
		return v, nil
	}

	v, err, shared := l.group.Do(p, func() (any, error) {
		return l.read(ctx, p)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // Already a *LoadError.
	}

	if shared {
		log.WithContext(ctx).Debug("shared in-flight data module load",
			slog.String("path", p),
		)
	}

	return v, nil
}

func (l *Loader) read(ctx context.Context, p string) (any, error) {
	v, ok, gen := l.cache.lookup(p)
	if ok {
		return v, nil
	}

	_, span := tracer.Start(ctx, "read data module", trace.WithAttributes(
		attribute.String("path", p),
	))
	defer span.End()

	logger := log.WithContext(ctx).With(slog.String("path", p))

	decode, ok := l.decoders[strings.ToLower(filepath.Ext(p))]
	if !ok {
		return nil, &LoadError{Path: p, Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(p))}
	}

	b, err := os.ReadFile(p) //nolint:gosec // G304: data module paths come from configuration.
	if err != nil {
		span.RecordError(err)

		return nil, &LoadError{Path: p, Err: err}
	}

	v, err = decode(p, b)
	if err != nil {
		span.RecordError(err)

		return nil, &LoadError{Path: p, Err: err}
	}

	if !l.cache.storeAt(p, v, gen) {
		logger.Debug("data module invalidated during load, not caching")
	} else {
		logger.Debug("loaded data module", slog.Int("bytes", len(b)))
	}

	return v, nil
}
