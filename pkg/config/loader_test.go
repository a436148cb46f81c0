package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stitch/api/v1beta1"
	"github.com/macropower/stitch/api/v1beta1/configs"
	"github.com/macropower/stitch/pkg/config"
	"github.com/macropower/stitch/pkg/rule"
	"github.com/macropower/stitch/pkg/yaml"
)

const validConfig = `apiVersion: stitch.jacobcolvin.com/v1beta1
kind: Configuration
documentRoot: public
moduleGroups:
  - name: copyright
    selector: "#year"
    render: string(data.copyright.year)
    dataModules: data/copyright.json
  - selector: ".projects"
    render: '"<ul></ul>"'
    outer: true
    pathIsolate:
      - /index.html
      - projects.html
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "stitch.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))

	return p
}

func TestNewLoaderFromFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setup   func(t *testing.T) string
		wantErr bool
	}{
		"valid file": {
			setup: func(t *testing.T) string {
				t.Helper()

				return writeConfig(t, validConfig)
			},
		},
		"missing file": {
			setup: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "stitch.yaml")
			},
			wantErr: true,
		},
		"directory": {
			setup: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := config.NewLoaderFromFile(tc.setup(t), configs.New, configs.DefaultValidator)
			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, got)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	l := config.NewLoaderFromBytes([]byte(validConfig), configs.New, configs.DefaultValidator)
	require.NoError(t, l.Validate())

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, v1beta1.APIVersion, cfg.APIVersion)
	assert.Equal(t, "Configuration", cfg.Kind)
	assert.Equal(t, "public", cfg.DocumentRoot)
	require.Len(t, cfg.ModuleGroups, 2)

	assert.Equal(t, rule.Spec{
		Name:        "copyright",
		Selector:    "#year",
		Render:      "string(data.copyright.year)",
		DataModules: rule.StringList{"data/copyright.json"},
	}, cfg.ModuleGroups[0])
	assert.Equal(t, rule.StringList{"/index.html", "projects.html"}, cfg.ModuleGroups[1].PathIsolate)
	assert.True(t, cfg.ModuleGroups[1].Outer)
}

func TestLoader_Defaults(t *testing.T) {
	t.Parallel()

	l := config.NewLoaderFromBytes([]byte(`apiVersion: stitch.jacobcolvin.com/v1beta1
kind: Configuration
moduleGroups: []
`), configs.New, configs.DefaultValidator)
	require.NoError(t, l.Validate())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, configs.DefaultDocumentRoot, cfg.DocumentRoot)
	assert.Empty(t, cfg.ModuleGroups)
}

func TestLoader_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		content string
		path    string
	}{
		"unknown field": {
			content: `apiVersion: stitch.jacobcolvin.com/v1beta1
kind: Configuration
moduleGroups:
  - selector: "#a"
    render: '"a"'
    template: nope
`,
			path: "$.moduleGroups[0]",
		},
		"empty selector": {
			content: `apiVersion: stitch.jacobcolvin.com/v1beta1
kind: Configuration
moduleGroups:
  - selector: "#a"
    render: '"a"'
  - selector: ""
    render: '"b"'
`,
			path: "$.moduleGroups[1].selector",
		},
		"data modules not strings": {
			content: `apiVersion: stitch.jacobcolvin.com/v1beta1
kind: Configuration
moduleGroups:
  - selector: "#a"
    render: '"a"'
    dataModules: 3
`,
			path: "$.moduleGroups[0].dataModules",
		},
		"wrong kind": {
			content: `apiVersion: stitch.jacobcolvin.com/v1beta1
kind: Policy
moduleGroups: []
`,
			path: "$.kind",
		},
		"missing module groups": {
			content: `apiVersion: stitch.jacobcolvin.com/v1beta1
kind: Configuration
`,
			path: "$",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			l := config.NewLoaderFromBytes([]byte(tc.content), configs.New, configs.DefaultValidator)

			err := l.Validate()
			require.Error(t, err)

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.path, yamlErr.Path.String())
			assert.Equal(t, []byte(tc.content), yamlErr.Source)
		})
	}
}

func TestLoader_SyntaxError(t *testing.T) {
	t.Parallel()

	l := config.NewLoaderFromBytes([]byte("moduleGroups: [\n"), configs.New, configs.DefaultValidator)

	err := l.Validate()
	require.Error(t, err)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.Equal(t, []byte("moduleGroups: [\n"), yamlErr.Source)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Parallel()

	l := config.NewLoaderFromBytes([]byte("kind: Anything\n"), configs.New, configs.DefaultValidator,
		config.WithValidator(nil),
	)
	require.NoError(t, l.Validate())
}

func TestLoader_LoadValidates(t *testing.T) {
	t.Parallel()

	l := config.NewLoaderFromBytes([]byte(`apiVersion: stitch.jacobcolvin.com/v1beta1
kind: Configuration
moduleGroups:
  - render: '"x"'
`), configs.New, configs.DefaultValidator)

	_, err := l.Load()
	require.Error(t, err)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.Equal(t, "$.moduleGroups[0]", yamlErr.Path.String())
}

func TestLoader_Path(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "kind: [\n")

	l, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	err = l.Validate()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), path+": "), err.Error())

	fromBytes := config.NewLoaderFromBytes([]byte(validConfig), configs.New, configs.DefaultValidator)
	assert.Empty(t, fromBytes.Path())
}
