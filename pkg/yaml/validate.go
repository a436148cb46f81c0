package yaml

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Validator validates decoded YAML against a JSON schema, using
// [github.com/santhosh-tekuri/jsonschema/v6].
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaData, registered under url.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	var schema any

	err := json.Unmarshal(schemaData, &schema)
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()

	err = compiler.AddResource(url, schema)
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	jss, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: jss}, nil
}

// MustNewValidator is like [NewValidator] but panics on error. It is meant
// for schemas embedded at compile time.
func MustNewValidator(url string, schemaData []byte) *Validator {
	v, err := NewValidator(url, schemaData)
	if err != nil {
		panic(err)
	}

	return v
}

// SchemaError is the most specific failure of a schema validation.
type SchemaError struct {
	// Err is the complete validation error tree.
	Err *jsonschema.ValidationError
	// Message describes the most specific failure only.
	Message string
	// Location is the instance location of the failure.
	Location []string
}

func (e *SchemaError) Error() string {
	return e.Message
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Validate validates data (as decoded from YAML into `any`) against the
// schema. Failures are returned as an [*Error] pointing at the most specific
// offending location, wrapping a [*SchemaError].
func (s *Validator) Validate(data any) error {
	err := s.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	leaf := mostSpecific(validationErr)

	return &Error{
		Err: &SchemaError{
			Err:      validationErr,
			Message:  leaf.ErrorKind.LocalizedString(printer),
			Location: leaf.InstanceLocation,
		},
		Path: pathFromLocation(leaf.InstanceLocation),
	}
}

// mostSpecific returns the leaf cause with the longest instance location.
// Ties go to the first leaf, depth first.
func mostSpecific(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return err
	}

	var best *jsonschema.ValidationError
	for _, cause := range err.Causes {
		candidate := mostSpecific(cause)
		if best == nil || len(candidate.InstanceLocation) > len(best.InstanceLocation) {
			best = candidate
		}
	}

	return best
}

// pathFromLocation converts an instance location to a [yaml.Path]. Numeric
// segments are sequence indexes.
func pathFromLocation(location []string) *yaml.Path {
	current := NewPathBuilder().Root()

	for _, part := range location {
		index, err := strconv.ParseUint(part, 10, 64)
		if err == nil {
			current = current.Index(uint(index))

			continue
		}

		current = current.Child(part)
	}

	return current.Build()
}
