// Package build transforms many documents at once, in parallel.
//
// Rule-level failures are collected in the [Report] and never stop other
// documents from being transformed.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/stitch/pkg/log"
	"github.com/macropower/stitch/pkg/pipeline"
)

// DocumentExtensions are the file extensions [Builder.Dir] transforms.
var DocumentExtensions = []string{".html", ".htm"}

// Builder transforms documents with a [pipeline.Pipeline].
type Builder struct {
	pipeline    *pipeline.Pipeline
	concurrency int
}

// Option configures a [Builder].
type Option func(b *Builder)

// WithConcurrency sets how many documents are transformed at once. Values
// below one mean [runtime.GOMAXPROCS].
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		b.concurrency = n
	}
}

func New(p *pipeline.Pipeline, opts ...Option) *Builder {
	b := &Builder{pipeline: p}
	for _, opt := range opts {
		opt(b)
	}

	if b.concurrency < 1 {
		b.concurrency = runtime.GOMAXPROCS(0)
	}

	return b
}

// Transform transforms every document in docs, keyed by document path, and
// returns the transformed documents under the same keys. A document whose
// transformation failed is returned unchanged.
func (b *Builder) Transform(ctx context.Context, docs map[string]string) (map[string]string, Report) {
	start := time.Now()

	paths := make([]string, 0, len(docs))
	for p := range docs {
		paths = append(paths, p)
	}

	slices.Sort(paths)

	reports := make([]DocumentReport, len(paths))
	outputs := make([]string, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)

	for i, p := range paths {
		g.Go(func() error {
			outputs[i], reports[i] = b.transform(ctx, p, docs[p])

			return nil
		})
	}

	_ = g.Wait()

	out := make(map[string]string, len(paths))
	for i, p := range paths {
		out[p] = outputs[i]
	}

	return out, Report{Documents: reports, Duration: time.Since(start)}
}

func (b *Builder) transform(ctx context.Context, docPath, document string) (string, DocumentReport) {
	rep := DocumentReport{Path: docPath, BytesIn: len(document)}

	if err := ctx.Err(); err != nil {
		rep.Err = err
		rep.BytesOut = len(document)

		return document, rep
	}

	res, err := b.pipeline.Transform(ctx, docPath, document)
	if err != nil {
		rep.Err = err
		rep.BytesOut = len(document)

		log.WithContext(ctx).ErrorContext(ctx, "transform document",
			slog.String("document", docPath),
			slog.Any("error", err),
		)

		return document, rep
	}

	rep.Applied = res.Applied
	rep.BytesOut = len(res.HTML)

	for _, rr := range res.Rules {
		if rr.Err != nil {
			rep.RuleErrors = append(rep.RuleErrors, rr.Err)
		}
	}

	return res.HTML, rep
}

// Dir transforms every document under dir. With an empty out, documents are
// rewritten in place (only when changed); otherwise the transformed
// documents are written under out with the same relative paths. Other files
// are not copied.
//
// Document paths are the slash-separated paths relative to dir, rooted at
// "/". The returned error is set for walk failures only; read and write
// failures are recorded per document.
func (b *Builder) Dir(ctx context.Context, dir, out string) (Report, error) {
	start := time.Now()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return Report{}, fmt.Errorf("resolve %q: %w", dir, err)
	}

	var absOut string
	if out != "" {
		absOut, err = filepath.Abs(out)
		if err != nil {
			return Report{}, fmt.Errorf("resolve %q: %w", out, err)
		}
	}

	files, err := findDocuments(absDir, absOut)
	if err != nil {
		return Report{}, err
	}

	log.WithContext(ctx).DebugContext(ctx, "found documents",
		slog.String("dir", absDir),
		slog.Int("count", len(files)),
	)

	reports := make([]DocumentReport, len(files))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)

	for i, rel := range files {
		g.Go(func() error {
			reports[i] = b.file(ctx, absDir, absOut, rel)

			return nil
		})
	}

	_ = g.Wait()

	return Report{Documents: reports, Duration: time.Since(start)}, nil
}

func (b *Builder) file(ctx context.Context, dir, out, rel string) DocumentReport {
	docPath := "/" + filepath.ToSlash(rel)
	src := filepath.Join(dir, rel)

	info, err := os.Stat(src)
	if err != nil {
		return DocumentReport{Path: docPath, Err: fmt.Errorf("stat %s: %w", src, err)}
	}

	in, err := os.ReadFile(src) //nolint:gosec // G304: paths come from walking dir.
	if err != nil {
		return DocumentReport{Path: docPath, Err: fmt.Errorf("read %s: %w", src, err)}
	}

	html, rep := b.transform(ctx, docPath, string(in))
	if rep.Err != nil {
		return rep
	}

	dst := src
	if out != "" {
		dst = filepath.Join(out, rel)
	} else if html == string(in) {
		return rep
	}

	err = os.MkdirAll(filepath.Dir(dst), 0o750)
	if err != nil {
		rep.Err = fmt.Errorf("create directory for %s: %w", dst, err)

		return rep
	}

	err = os.WriteFile(dst, []byte(html), info.Mode().Perm())
	if err != nil {
		rep.Err = fmt.Errorf("write %s: %w", dst, err)

		return rep
	}

	rep.Written = dst

	return rep
}

// findDocuments returns the sorted paths, relative to dir, of all documents
// under dir. The out directory is skipped when it is inside dir.
func findDocuments(dir, out string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if out != "" && p == out && p != dir {
				return filepath.SkipDir
			}

			return nil
		}

		if !slices.Contains(DocumentExtensions, strings.ToLower(filepath.Ext(p))) {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		files = append(files, rel)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", dir, err)
	}

	return files, nil
}

// DocumentReport is the outcome for one document.
type DocumentReport struct {
	// Err is set when the document could not be read, patched or written.
	Err  error
	Path string
	// Written is the file the document was written to, if any.
	Written string
	// RuleErrors holds the errors of skipped rules.
	RuleErrors []error
	Applied    int
	BytesIn    int
	BytesOut   int
}

// Report summarizes a build.
type Report struct {
	Documents []DocumentReport
	Duration  time.Duration
}

// Applied returns the total number of replaced elements.
func (r Report) Applied() int {
	n := 0
	for _, d := range r.Documents {
		n += d.Applied
	}

	return n
}

// Err joins the errors of failed documents.
func (r Report) Err() error {
	var errs []error
	for _, d := range r.Documents {
		if d.Err != nil {
			errs = append(errs, d.Err)
		}
	}

	return errors.Join(errs...)
}

// RuleErr joins the errors of all skipped rules.
func (r Report) RuleErr() error {
	var errs []error
	for _, d := range r.Documents {
		errs = append(errs, d.RuleErrors...)
	}

	return errors.Join(errs...)
}

// Summary returns a one-line human readable summary.
func (r Report) Summary() string {
	var in, out, failed, ruleErrs int
	for _, d := range r.Documents {
		in += d.BytesIn
		out += d.BytesOut
		ruleErrs += len(d.RuleErrors)

		if d.Err != nil {
			failed++
		}
	}

	return fmt.Sprintf("%d %s (%s → %s), %d %s, %d rule %s, %d failed in %s",
		len(r.Documents), plural(len(r.Documents), "document", "documents"),
		humanize.Bytes(uint64(in)), humanize.Bytes(uint64(out)), //nolint:gosec // G115: lengths are non-negative.
		r.Applied(), plural(r.Applied(), "replacement", "replacements"),
		ruleErrs, plural(ruleErrs, "error", "errors"),
		failed, r.Duration.Round(time.Millisecond),
	)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
