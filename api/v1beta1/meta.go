// Package v1beta1 contains the v1beta1 API types for stitch configuration.
package v1beta1

import (
	"errors"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// APIVersion is the current API version for all stitch configuration kinds.
const APIVersion = "stitch.jacobcolvin.com/v1beta1"

var (
	// ValidAPIVersions contains all valid API versions.
	ValidAPIVersions = []string{APIVersion}

	ErrUnknownAPIVersion = errors.New("unknown apiVersion")
	ErrUnknownKind       = errors.New("unknown kind")
)

// TypeMeta contains the API version and kind metadata common to all config types.
type TypeMeta struct {
	// APIVersion specifies the API version for this configuration.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`
}

func (tm TypeMeta) GetAPIVersion() string {
	return tm.APIVersion
}

func (tm TypeMeta) GetKind() string {
	return tm.Kind
}

// Check returns an error unless the API version is one of
// [ValidAPIVersions] and the kind is one of kinds.
func (tm TypeMeta) Check(kinds ...string) error {
	if !slices.Contains(ValidAPIVersions, tm.APIVersion) {
		return fmt.Errorf("%w %q, expected one of %q", ErrUnknownAPIVersion, tm.APIVersion, ValidAPIVersions)
	}

	if !slices.Contains(kinds, tm.Kind) {
		return fmt.Errorf("%w %q, expected one of %q", ErrUnknownKind, tm.Kind, kinds)
	}

	return nil
}

// Object is the interface that all config types implement.
type Object interface {
	GetAPIVersion() string
	GetKind() string
	EnsureDefaults()
}

// ExtendSchemaWithEnums constrains the apiVersion and kind properties of jss
// to the given values.
func ExtendSchemaWithEnums(jss *jsonschema.Schema, apiVersions, kinds []string) {
	addConsts(jss, "apiVersion", "API Version", apiVersions)
	addConsts(jss, "kind", "Kind", kinds)
}

func addConsts(jss *jsonschema.Schema, property, title string, values []string) {
	prop, ok := jss.Properties.Get(property)
	if !ok {
		panic(property + " property not found in schema")
	}

	for _, v := range values {
		prop.OneOf = append(prop.OneOf, &jsonschema.Schema{
			Type:  "string",
			Const: v,
			Title: title,
		})
	}

	_, _ = jss.Properties.Set(property, prop)
}
