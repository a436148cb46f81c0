package expr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// ErrInvalidOutputType is returned when a render expression evaluates to
// something other than a string.
var ErrInvalidOutputType = errors.New("invalid render output type")

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

var renderEnvironment = sync.OnceValues(func() (*Environment, error) {
	return NewEnvironment(
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("document", cel.StringType),
	)
})

// Environment provides a thread-safe wrapper around a [*cel.Env].
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates a new [Environment].
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	env, err := createEnvironment(opts...)
	if err != nil {
		return nil, err
	}

	return &Environment{env: env}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// createEnvironment creates the [*cel.Env] using the global mutex.
func createEnvironment(opts ...cel.EnvOption) (*cel.Env, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	opts = append(opts, cel.Lib(&lib{}))

	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return celEnv, nil
}

// Compile compiles a CEL expression and returns a program.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) Compile(expression string) (cel.Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return program, nil
}

// Renderer is a compiled render expression.
type Renderer struct {
	program    cel.Program
	expression string
}

// NewRenderer compiles expression against the render environment.
func NewRenderer(expression string) (*Renderer, error) {
	env, err := renderEnvironment()
	if err != nil {
		return nil, err
	}

	program, err := env.Compile(expression)
	if err != nil {
		return nil, err
	}

	return &Renderer{program: program, expression: expression}, nil
}

// MustNewRenderer is like [NewRenderer] but panics on error.
func MustNewRenderer(expression string) *Renderer {
	r, err := NewRenderer(expression)
	if err != nil {
		panic(err)
	}

	return r
}

// Render evaluates the expression with data bound to `data` and the document
// path from ctx (see [WithDocument]) bound to `document`.
func (r *Renderer) Render(ctx context.Context, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}

	out, _, err := r.program.ContextEval(ctx, map[string]any{
		"data":     ConvertToCELValue(data),
		"document": DocumentFromContext(ctx),
	})
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", r.expression, err)
	}

	s, ok := out.(types.String)
	if !ok {
		return "", fmt.Errorf("%w: got %s", ErrInvalidOutputType, out.Type().TypeName())
	}

	return string(s), nil
}

func (r *Renderer) String() string {
	return r.expression
}

type documentKey struct{}

// WithDocument returns a copy of ctx carrying the path of the document being
// transformed.
func WithDocument(ctx context.Context, docPath string) context.Context {
	return context.WithValue(ctx, documentKey{}, docPath)
}

// DocumentFromContext returns the document path stored by [WithDocument], or
// an empty string.
func DocumentFromContext(ctx context.Context) string {
	docPath, _ := ctx.Value(documentKey{}).(string)

	return docPath
}
