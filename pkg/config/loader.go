package config

import (
	"bytes"
	"fmt"

	"github.com/macropower/stitch/api"
	"github.com/macropower/stitch/api/v1beta1"
	"github.com/macropower/stitch/pkg/yaml"
)

// Validator validates decoded configuration data.
type Validator interface {
	Validate(data any) error
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*loaderOptions)

type loaderOptions struct {
	validator Validator
	colored   bool
}

// WithValidator replaces the default validator. A nil validator disables
// schema validation.
func WithValidator(v Validator) LoaderOpt {
	return func(o *loaderOptions) {
		o.validator = v
	}
}

// WithColor enables ANSI colors in annotated source excerpts.
func WithColor(colored bool) LoaderOpt {
	return func(o *loaderOptions) {
		o.colored = colored
	}
}

// Loader decodes one configuration document into T. Schema validation runs
// on the generic YAML tree before the typed decode, so errors point at the
// offending YAML node even when the typed decode would have failed
// differently.
type Loader[T v1beta1.Object] struct {
	validator Validator
	newFunc   func() T
	errs      *yaml.ErrorWrapper
	path      string
	data      []byte
	validated bool
}

// NewLoaderFromBytes creates a [Loader] for data. newFunc returns a T
// holding default values, e.g. [configs.New].
func NewLoaderFromBytes[T v1beta1.Object](
	data []byte,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) *Loader[T] {
	options := &loaderOptions{validator: defaultValidator}
	for _, opt := range opts {
		opt(options)
	}

	return &Loader[T]{
		data:      data,
		newFunc:   newFunc,
		validator: options.validator,
		errs: yaml.NewErrorWrapper(
			yaml.WithSource(data),
			yaml.WithColor(options.colored),
		),
	}
}

// NewLoaderFromFile creates a [Loader] for the file at path. Errors returned
// by the loader are prefixed with path.
func NewLoaderFromFile[T v1beta1.Object](
	path string,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) (*Loader[T], error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already includes the path.
	}

	l := NewLoaderFromBytes(data, newFunc, defaultValidator, opts...)
	l.path = path

	return l, nil
}

// Path returns the file the loader reads, or an empty string.
func (l *Loader[T]) Path() string {
	return l.path
}

// Validate checks the document against the schema.
func (l *Loader[T]) Validate() error {
	var tree any

	err := yaml.NewDecoder(bytes.NewReader(l.data)).Decode(&tree)
	if err != nil {
		return l.wrap(err)
	}

	if l.validator != nil {
		err = l.validator.Validate(tree)
		if err != nil {
			return l.wrap(err)
		}
	}

	l.validated = true

	return nil
}

// Load validates the document if [Loader.Validate] has not succeeded yet,
// then decodes it over the defaults from newFunc.
//
//nolint:ireturn // Generic type parameter return is intentional.
func (l *Loader[T]) Load() (T, error) {
	var zero T

	if !l.validated {
		err := l.Validate()
		if err != nil {
			return zero, err
		}
	}

	cfg := l.newFunc()

	err := yaml.NewDecoder(bytes.NewReader(l.data)).Decode(cfg)
	if err != nil {
		return zero, l.wrap(err)
	}

	cfg.EnsureDefaults()

	return cfg, nil
}

func (l *Loader[T]) wrap(err error) error {
	err = l.errs.Wrap(err)
	if l.path == "" {
		return err
	}

	return fmt.Errorf("%s: %w", l.path, err)
}
