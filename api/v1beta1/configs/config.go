// Package configs provides the project Configuration type for stitch.
package configs

import (
	"fmt"
	"path/filepath"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/stitch/api"
	"github.com/macropower/stitch/api/v1beta1"
	"github.com/macropower/stitch/pkg/rule"
	"github.com/macropower/stitch/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen -root ../../.. -o configs.v1beta1.json

const (
	// Kind is the kind of project configuration files.
	Kind = "Configuration"

	// DefaultDocumentRoot is used when documentRoot is not set.
	DefaultDocumentRoot = "."
)

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	//go:embed configs.v1beta1.json
	schemaJSON []byte

	// ValidKinds contains the valid kind values for project configurations.
	ValidKinds = []string{Kind}

	// DefaultValidator validates project configuration against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/configs.v1beta1.json", schemaJSON)

	_ v1beta1.Object = (*Config)(nil)
)

// Config is a stitch project configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	v1beta1.TypeMeta `json:",inline"`
	// DocumentRoot is the directory holding the HTML documents, relative to
	// the configuration file.
	DocumentRoot string `json:"documentRoot,omitempty" jsonschema:"title=Document Root"`
	// ModuleGroups are applied to every document in declaration order.
	ModuleGroups []rule.Spec `json:"moduleGroups" jsonschema:"title=Module Groups"`
}

// New creates a [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       Kind,
		},
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults sets unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.DocumentRoot == "" {
		c.DocumentRoot = DefaultDocumentRoot
	}

	if c.ModuleGroups == nil {
		c.ModuleGroups = []rule.Spec{}
	}
}

// Validate checks the type metadata.
func (c *Config) Validate() error {
	err := c.Check(ValidKinds...)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}

// Rules normalizes the module groups. Relative data module paths resolve
// against root, normally the directory of the configuration file.
func (c *Config) Rules(root string) ([]*rule.Rule, error) {
	rules, err := rule.Normalize(c.ModuleGroups, root)
	if err != nil {
		return nil, fmt.Errorf("normalize module groups: %w", err)
	}

	return rules, nil
}

// DocumentDir returns the document root resolved against root.
func (c *Config) DocumentDir(root string) string {
	dir := filepath.FromSlash(c.DocumentRoot)
	if dir == "" {
		dir = DefaultDocumentRoot
	}

	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}

	return filepath.Join(root, dir)
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// WriteDefault writes the embedded default stitch.yaml to path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force)
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// DefaultYAML returns the embedded default configuration.
func DefaultYAML() []byte {
	return defaultConfigYAML
}
