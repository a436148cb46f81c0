// Package api contains the file helpers shared by the versioned
// configuration types.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/macropower/stitch/pkg/yaml"
)

var (
	// ConfigFileNames are the project file names searched by [FindConfigFile],
	// in order of preference.
	ConfigFileNames = []string{"stitch.yaml", ".stitch.yaml"}

	ErrIsDirectory  = errors.New("path is a directory")
	ErrNotRegular   = errors.New("not a regular file")
	ErrNoConfigFile = errors.New("no configuration file found")
)

// regularFile reports whether path is an existing regular file. It returns
// an error for directories and other non-regular files.
func regularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}

	switch {
	case info.IsDir():
		return false, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	case !info.Mode().IsRegular():
		return false, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	return true, nil
}

// ReadFile reads a regular file.
func ReadFile(path string) ([]byte, error) {
	ok, err := regularFile(path)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("read file: %w", fs.ErrNotExist)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// MarshalYAML serializes obj with the project's YAML encoder options.
func MarshalYAML(obj any) ([]byte, error) {
	b := &bytes.Buffer{}

	enc := yaml.NewEncoder(b)

	err := enc.Encode(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return nil, fmt.Errorf("close yaml encoder: %w", err)
	}

	return b.Bytes(), nil
}

// FindConfigFile searches for one of [ConfigFileNames] starting from
// targetPath and walking up to the filesystem root. It returns
// [ErrNoConfigFile] when no file is found.
func FindConfigFile(targetPath string) (string, error) {
	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}

	searchDir := absPath
	if !info.IsDir() {
		searchDir = filepath.Dir(absPath)
	}

	for {
		for _, name := range ConfigFileNames {
			p := filepath.Join(searchDir, name)

			ok, err := regularFile(p)
			if err != nil {
				slog.Debug("skip config candidate", slog.String("path", p), slog.Any("error", err))

				continue
			}

			if ok {
				return p, nil
			}
		}

		parent := filepath.Dir(searchDir)
		if parent == searchDir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNoConfigFile, absPath)
		}

		searchDir = parent
	}
}

// WriteDefaultFile writes data to path. An existing file is kept unless
// force is set, in which case it is renamed to a timestamped backup first.
func WriteDefaultFile(path string, data []byte, force bool) error {
	exists, err := regularFile(path)
	if err != nil {
		return err
	}

	if exists && !force {
		slog.Info("configuration already exists, use --force to replace it",
			slog.String("path", path),
		)

		return nil
	}

	err = os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if exists {
		backup := fmt.Sprintf("%s.%d.old", path, time.Now().UnixNano())

		slog.Info("backing up existing file", slog.String("path", backup))

		err = os.Rename(path, backup)
		if err != nil {
			return fmt.Errorf("back up existing file: %w", err)
		}
	}

	slog.Info("write default configuration", slog.String("path", path))

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
