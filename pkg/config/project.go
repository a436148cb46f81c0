package config

import (
	"fmt"
	"path/filepath"

	"github.com/macropower/stitch/api"
	"github.com/macropower/stitch/api/v1beta1/configs"
	"github.com/macropower/stitch/pkg/rule"
)

// Project is a loaded and normalized configuration file.
type Project struct {
	Config *configs.Config
	// Path is the absolute path of the configuration file.
	Path string
	// Root is the directory of the configuration file. Data module paths
	// are relative to it.
	Root string
	// Rules are the normalized module groups in declaration order.
	Rules []*rule.Rule
}

// DocumentDir returns the absolute document root.
func (p *Project) DocumentDir() string {
	return p.Config.DocumentDir(p.Root)
}

// LoadProject reads, validates and normalizes the configuration file at
// path.
func LoadProject(path string, opts ...LoaderOpt) (*Project, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	loader, err := NewLoaderFromFile(absPath, configs.New, configs.DefaultValidator, opts...)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return loadProject(loader, absPath)
}

// LoadProjectFromBytes is like [LoadProject] for configuration data that
// does not come from a file. Data module paths resolve against root.
func LoadProjectFromBytes(data []byte, root string, opts ...LoaderOpt) (*Project, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	loader := NewLoaderFromBytes(data, configs.New, configs.DefaultValidator, opts...)

	return loadProject(loader, filepath.Join(absRoot, api.ConfigFileNames[0]))
}

// FindProject loads the nearest configuration file at or above target.
func FindProject(target string, opts ...LoaderOpt) (*Project, error) {
	path, err := api.FindConfigFile(target)
	if err != nil {
		return nil, fmt.Errorf("find config: %w", err)
	}

	return LoadProject(path, opts...)
}

func loadProject(loader *Loader[*configs.Config], path string) (*Project, error) {
	err := loader.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	root := filepath.Dir(path)

	rules, err := cfg.Rules(root)
	if err != nil {
		return nil, err
	}

	return &Project{
		Config: cfg,
		Path:   path,
		Root:   root,
		Rules:  rules,
	}, nil
}
