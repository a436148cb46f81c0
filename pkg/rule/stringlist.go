package rule

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// StringList is a list of strings that may also be written as a single
// string in configuration files.
type StringList []string

// UnmarshalYAML implements the goccy/go-yaml InterfaceUnmarshaler.
func (l *StringList) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any

	err := unmarshal(&raw)
	if err != nil {
		return err
	}

	return l.set(raw)
}

func (l *StringList) UnmarshalJSON(b []byte) error {
	var raw any

	err := json.Unmarshal(b, &raw)
	if err != nil {
		return fmt.Errorf("unmarshal string list: %w", err)
	}

	return l.set(raw)
}

func (l *StringList) set(raw any) error {
	switch v := raw.(type) {
	case nil:
		*l = nil
	case string:
		*l = StringList{v}
	case []any:
		out := make(StringList, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("item %d: expected string, got %T", i, item)
			}

			out = append(out, s)
		}

		*l = out
	default:
		return fmt.Errorf("expected string or list of strings, got %T", raw)
	}

	return nil
}

// JSONSchema implements [jsonschema.JSONSchemer].
func (StringList) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}
