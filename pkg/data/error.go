package data

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad is matched by every [*LoadError].
	ErrLoad = errors.New("load data module")
	// ErrUnsupportedFormat is returned for files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported data module format")
	// ErrNoUsableValue is returned when a file decodes to nothing usable,
	// e.g. an empty YAML document or a non-concrete CUE value.
	ErrNoUsableValue = errors.New("no usable value")
	// ErrDuplicateKey is returned when two data module paths share a [Key].
	// It is not a [*LoadError], since no file failed to load.
	ErrDuplicateKey = errors.New("duplicate data key")
)

// LoadError identifies the data module that could not be read or decoded.
type LoadError struct {
	Err  error
	Path string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load data module %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}
