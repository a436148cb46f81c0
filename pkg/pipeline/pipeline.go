// Package pipeline transforms one HTML document with a set of module group
// rules: it filters the rules by document path, loads their data modules,
// renders their fragments, and patches the document.
//
// A rule whose data cannot be loaded or whose render fails is skipped for
// that document; its target elements are left untouched and the remaining
// rules still apply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/stitch/pkg/data"
	"github.com/macropower/stitch/pkg/expr"
	"github.com/macropower/stitch/pkg/log"
	"github.com/macropower/stitch/pkg/patch"
	"github.com/macropower/stitch/pkg/render"
	"github.com/macropower/stitch/pkg/rule"
)

var tracer = otel.Tracer("github.com/macropower/stitch/pkg/pipeline")

// Pipeline transforms documents. It is safe for concurrent use; documents
// share only the data loader's cache.
type Pipeline struct {
	loader *data.Loader
	rules  []*rule.Rule
}

// New creates a [Pipeline]. A nil loader gets a fresh one with its own
// cache.
func New(rules []*rule.Rule, loader *data.Loader) *Pipeline {
	if loader == nil {
		loader = data.NewLoader(nil)
	}

	return &Pipeline{rules: rules, loader: loader}
}

// Rules returns the pipeline's rules in declaration order.
func (p *Pipeline) Rules() []*rule.Rule {
	return p.rules
}

// Loader returns the pipeline's data loader.
func (p *Pipeline) Loader() *data.Loader {
	return p.loader
}

// RuleResult is the outcome of one applicable rule for one document.
type RuleResult struct {
	Rule *rule.Rule
	// Err is a [*data.LoadError] or [*render.Error], wrapped with the
	// document path. The rule was skipped when it is set.
	Err error
	// Count is the number of elements replaced.
	Count int
}

// Result is a transformed document.
type Result struct {
	Document string
	HTML     string
	// Rules holds one entry per applicable rule, in declaration order.
	Rules   []RuleResult
	Applied int
}

// Err joins the errors of all skipped rules.
func (r Result) Err() error {
	var errs []error
	for _, rr := range r.Rules {
		if rr.Err != nil {
			errs = append(errs, rr.Err)
		}
	}

	return errors.Join(errs...)
}

// Transform applies every rule that applies to docPath to document. The
// returned error is only set when the document itself cannot be patched;
// per-rule failures are reported in [Result.Rules].
func (p *Pipeline) Transform(ctx context.Context, docPath, document string) (Result, error) {
	docPath = rule.NormalizeDocPath(docPath)

	ctx, span := tracer.Start(ctx, "transform", trace.WithAttributes(
		attribute.String("document", docPath),
	))
	defer span.End()

	ctx = expr.WithDocument(ctx, docPath)
	logger := log.WithContext(ctx).With(slog.String("document", docPath))

	res := Result{Document: docPath, HTML: document}

	applicable := rule.Filter(p.rules, docPath)
	if len(applicable) == 0 {
		return res, nil
	}

	var (
		fragments []patch.Fragment
		owners    []int
	)

	for _, r := range applicable {
		rr := RuleResult{Rule: r}
		ruleLogger := logger.With(
			slog.String("rule", r.String()),
			slog.String("selector", r.Selector),
		)

		merged, err := p.loader.Load(ctx, r.DataModules)
		if err != nil {
			rr.Err = fmt.Errorf("document %s: selector %q: %w", docPath, r.Selector, err)

			attrs := []any{slog.Any("error", err)}

			var loadErr *data.LoadError
			if errors.As(err, &loadErr) {
				attrs = append(attrs, slog.String("source", loadErr.Path))
			}

			ruleLogger.Warn("skipping module group: data module failed to load", attrs...)
			res.Rules = append(res.Rules, rr)

			continue
		}

		rendered := render.Render(ctx, r, merged)
		if rendered.Err != nil {
			rr.Err = fmt.Errorf("document %s: %w", docPath, rendered.Err)

			ruleLogger.Warn("skipping module group: render failed", slog.Any("error", rendered.Err))
			res.Rules = append(res.Rules, rr)

			continue
		}

		fragments = append(fragments, patch.Fragment{
			Selector: r.Selector,
			HTML:     rendered.HTML,
			Outer:    r.Outer,
		})
		owners = append(owners, len(res.Rules))
		res.Rules = append(res.Rules, rr)
	}

	patched, err := patch.Patch(document, fragments...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return res, fmt.Errorf("patch document %s: %w", docPath, err)
	}

	for i, n := range patched.Counts {
		res.Rules[owners[i]].Count = n

		if n == 0 {
			logger.Debug("selector matched no elements",
				slog.String("rule", res.Rules[owners[i]].Rule.String()),
				slog.String("selector", fragments[i].Selector),
			)
		}
	}

	res.HTML = patched.HTML
	res.Applied = patched.Applied

	span.SetAttributes(attribute.Int("applied", res.Applied))

	return res, nil
}
