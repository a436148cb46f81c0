package yaml_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stitch/pkg/yaml"
)

const moduleGroupSchema = `{
	"type": "object",
	"properties": {
		"documentRoot": {"type": "string"},
		"moduleGroups": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"selector": {"type": "string", "minLength": 1},
					"render": {"type": "string"},
					"outer": {"type": "boolean"},
					"dataModules": {
						"oneOf": [
							{"type": "string"},
							{"type": "array", "items": {"type": "string"}}
						]
					}
				},
				"required": ["selector"],
				"additionalProperties": false
			}
		}
	},
	"required": ["moduleGroups"]
}`

func TestNewValidator(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		schema string
		errMsg string
	}{
		"valid schema": {
			schema: moduleGroupSchema,
		},
		"empty schema": {
			schema: `{}`,
		},
		"invalid json": {
			schema: `{"invalid": json}`,
			errMsg: "unmarshal schema",
		},
		"invalid schema": {
			schema: `{"type": "invalid_type"}`,
			errMsg: "compile schema",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			v, err := yaml.NewValidator("test.json", []byte(tc.schema))
			if tc.errMsg != "" {
				require.ErrorContains(t, err, tc.errMsg)
				assert.Nil(t, v)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, v)
		})
	}
}

func TestMustNewValidator_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		yaml.MustNewValidator("bad.json", []byte(`{`))
	})
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	v := yaml.MustNewValidator("test.json", []byte(moduleGroupSchema))

	tcs := map[string]struct {
		data     any
		wantPath string
		wantMsg  string
	}{
		"valid": {
			data: map[string]any{
				"documentRoot": "site",
				"moduleGroups": []any{
					map[string]any{
						"selector":    "#copyright",
						"render":      `"<p>" + data.copyright.holder + "</p>"`,
						"dataModules": "data/copyright.json",
					},
					map[string]any{
						"selector":    "#projects",
						"dataModules": []any{"data/projects.json"},
						"outer":       true,
					},
				},
			},
		},
		"missing module groups": {
			data:     map[string]any{"documentRoot": "site"},
			wantPath: "$",
			wantMsg:  "missing property 'moduleGroups'",
		},
		"wrong root type": {
			data: map[string]any{
				"documentRoot": 5,
				"moduleGroups": []any{},
			},
			wantPath: "$.documentRoot",
		},
		"missing selector": {
			data: map[string]any{
				"moduleGroups": []any{
					map[string]any{"selector": "#a"},
					map[string]any{"render": `"x"`},
				},
			},
			wantPath: "$.moduleGroups[1]",
			wantMsg:  "missing property 'selector'",
		},
		"empty selector": {
			data: map[string]any{
				"moduleGroups": []any{
					map[string]any{"selector": ""},
				},
			},
			wantPath: "$.moduleGroups[0].selector",
			wantMsg:  "minLength: got 0, want 1",
		},
		"bad data module item": {
			data: map[string]any{
				"moduleGroups": []any{
					map[string]any{
						"selector":    "#a",
						"dataModules": []any{"a.json", 3},
					},
				},
			},
			wantPath: "$.moduleGroups[0].dataModules[1]",
		},
		"wrong outer type": {
			data: map[string]any{
				"moduleGroups": []any{
					map[string]any{"selector": "#a", "outer": "yes"},
				},
			},
			wantPath: "$.moduleGroups[0].outer",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := v.Validate(tc.data)
			if tc.wantPath == "" {
				require.NoError(t, err)

				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.wantPath, yamlErr.Path.String())

			var schemaErr *yaml.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.NotNil(t, schemaErr.Err)

			if tc.wantMsg != "" {
				assert.Equal(t, tc.wantMsg, schemaErr.Message)
			}
		})
	}
}
