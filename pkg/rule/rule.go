package rule

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/macropower/stitch/pkg/data"
	"github.com/macropower/stitch/pkg/expr"
)

var (
	errEmptySelector   = errors.New("selector is required")
	errNoRenderer      = errors.New("one of render or a Renderer is required")
	errBothRenderers   = errors.New("render and a Renderer are mutually exclusive")
	errEmptyDataModule = errors.New("empty data module path")
)

// Renderer produces an HTML fragment from a merged data object.
type Renderer interface {
	Render(ctx context.Context, data map[string]any) (string, error)
}

// RenderFunc adapts an ordinary function to a [Renderer].
type RenderFunc func(ctx context.Context, data map[string]any) (string, error)

func (f RenderFunc) Render(ctx context.Context, data map[string]any) (string, error) {
	return f(ctx, data)
}

// Spec is a module group as written in configuration.
//
// Exactly one of Render (a CEL expression, see package expr) or Renderer (a
// Go value, for library use) must be set.
type Spec struct {
	// Renderer renders the fragment. Not configurable from YAML.
	Renderer Renderer `json:"-" yaml:"-"`
	// Name is an optional identity used in logs and errors.
	Name string `json:"name,omitempty" jsonschema:"title=Name"`
	// Selector is the CSS selector of the elements to replace.
	Selector string `json:"selector" jsonschema:"title=Selector,minLength=1"`
	// Render is a CEL expression evaluating to the HTML fragment.
	Render string `json:"render,omitempty" jsonschema:"title=Render Expression"`
	// DataModules are data source files, relative to the project root. Each
	// is exposed to the renderer under its base name without extension.
	DataModules StringList `json:"dataModules,omitempty" jsonschema:"title=Data Modules"`
	// PathIsolate restricts the rule to these document paths.
	PathIsolate StringList `json:"pathIsolate,omitempty" jsonschema:"title=Path Isolate"`
	// PathIgnore excludes these document paths. Ignored when PathIsolate is
	// set.
	PathIgnore StringList `json:"pathIgnore,omitempty" jsonschema:"title=Path Ignore"`
	// Outer replaces the matched element itself instead of its content.
	Outer bool `json:"outer,omitempty" jsonschema:"title=Outer"`
}

// Rule is a validated module group.
type Rule struct {
	Renderer Renderer
	Name     string
	Selector string
	// DataModules are absolute, cleaned source paths in declaration order.
	DataModules []string
	// PathIsolate and PathIgnore hold paths normalized by [NormalizeDocPath].
	PathIsolate []string
	PathIgnore  []string
	Index       int
	Outer       bool
}

// Normalize validates specs and resolves their paths against root. It fails
// on the first malformed spec with a [*ConfigurationError].
func Normalize(specs []Spec, root string) ([]*Rule, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	rules := make([]*Rule, 0, len(specs))
	for i := range specs {
		r, err := normalize(i, &specs[i], absRoot)
		if err != nil {
			return nil, err
		}

		rules = append(rules, r)
	}

	return rules, nil
}

// MustNormalize is like [Normalize] but panics on error.
func MustNormalize(specs []Spec, root string) []*Rule {
	rules, err := Normalize(specs, root)
	if err != nil {
		panic(err)
	}

	return rules
}

func normalize(index int, spec *Spec, root string) (*Rule, error) {
	cfgErr := func(field string, err error) error {
		id := spec.Name
		if id == "" {
			id = spec.Selector
		}

		return &ConfigurationError{Index: index, Rule: id, Field: field, Err: err}
	}

	selector := strings.TrimSpace(spec.Selector)
	if selector == "" {
		return nil, cfgErr("selector", errEmptySelector)
	}

	if _, err := cascadia.ParseGroup(selector); err != nil {
		return nil, cfgErr("selector", err)
	}

	renderer := spec.Renderer
	switch {
	case renderer != nil && spec.Render != "":
		return nil, cfgErr("render", errBothRenderers)
	case renderer == nil && strings.TrimSpace(spec.Render) == "":
		return nil, cfgErr("render", errNoRenderer)
	case renderer == nil:
		r, err := expr.NewRenderer(spec.Render)
		if err != nil {
			return nil, cfgErr("render", err)
		}

		renderer = r
	}

	modules := make([]string, 0, len(spec.DataModules))
	keys := make(map[string]string, len(spec.DataModules))

	for _, m := range spec.DataModules {
		if strings.TrimSpace(m) == "" {
			return nil, cfgErr("dataModules", errEmptyDataModule)
		}

		p := filepath.FromSlash(m)
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}

		p = filepath.Clean(p)

		key := data.Key(p)
		if prev, ok := keys[key]; ok {
			return nil, cfgErr("dataModules",
				fmt.Errorf("%w %q: %s and %s", data.ErrDuplicateKey, key, prev, p))
		}

		keys[key] = p
		modules = append(modules, p)
	}

	return &Rule{
		Renderer:    renderer,
		Name:        spec.Name,
		Selector:    selector,
		DataModules: modules,
		PathIsolate: normalizeDocPaths(spec.PathIsolate),
		PathIgnore:  normalizeDocPaths(spec.PathIgnore),
		Index:       index,
		Outer:       spec.Outer,
	}, nil
}

func normalizeDocPaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		np := NormalizeDocPath(p)
		if !slices.Contains(out, np) {
			out = append(out, np)
		}
	}

	return out
}

// Applies reports whether the rule should run for docPath.
// A non-empty PathIsolate is an allow-list that takes precedence over
// PathIgnore; otherwise every document not in PathIgnore applies.
func (r *Rule) Applies(docPath string) bool {
	docPath = NormalizeDocPath(docPath)

	if len(r.PathIsolate) > 0 {
		return slices.Contains(r.PathIsolate, docPath)
	}

	return !slices.Contains(r.PathIgnore, docPath)
}

// UsesDataModule reports whether the absolute path p is one of the rule's
// data modules.
func (r *Rule) UsesDataModule(p string) bool {
	return slices.Contains(r.DataModules, filepath.Clean(p))
}

// String returns the rule's identity: its name if set, else "#<index>
// <selector>".
func (r *Rule) String() string {
	if r.Name != "" {
		return r.Name
	}

	return "#" + strconv.Itoa(r.Index) + " " + r.Selector
}

// Filter returns the rules that apply to docPath, in declaration order.
func Filter(rules []*Rule, docPath string) []*Rule {
	docPath = NormalizeDocPath(docPath)

	var out []*Rule
	for _, r := range rules {
		if r.Applies(docPath) {
			out = append(out, r)
		}
	}

	return out
}
