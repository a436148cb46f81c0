// Package render invokes a rule's render function and isolates its failures.
package render

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/stitch/pkg/rule"
)

var tracer = otel.Tracer("github.com/macropower/stitch/pkg/render")

// ErrRender is matched by every [*Error].
var ErrRender = errors.New("render module group")

// Error is a failed render, tagged with the rule that produced it.
type Error struct {
	Err      error
	Selector string
	Rule     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("render %s (selector %q): %v", e.Rule, e.Selector, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrRender
}

// PanicError wraps a value recovered from a panicking render function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Result is the outcome of one render. Exactly one of HTML (on success) or
// Err is meaningful.
type Result struct {
	Rule *rule.Rule
	Err  error
	HTML string
}

// OK reports whether the render succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Render calls r's renderer with data. Returned errors and panics are
// converted to an [*Error]; Render itself never panics on behalf of user
// code.
func Render(ctx context.Context, r *rule.Rule, data map[string]any) Result {
	ctx, span := tracer.Start(ctx, "render", trace.WithAttributes(
		attribute.String("rule", r.String()),
		attribute.String("selector", r.Selector),
	))
	defer span.End()

	html, err := call(ctx, r.Renderer, data)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return Result{
			Rule: r,
			Err: &Error{
				Err:      err,
				Selector: r.Selector,
				Rule:     r.String(),
			},
		}
	}

	return Result{Rule: r, HTML: html}
}

func call(ctx context.Context, renderer rule.Renderer, data map[string]any) (html string, err error) {
	defer func() {
		if v := recover(); v != nil {
			html = ""
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()

	if renderer == nil {
		return "", errors.New("no renderer")
	}

	return renderer.Render(ctx, data)
}
