package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Loader resolves configuration files against an ordered list of search
// paths and decodes them by extension. Paths added first win, so a user
// path registered before the system path shadows it.
type Loader struct {
	mu    sync.Mutex
	paths []string
}

// NewLoader creates a loader with no search paths.
func NewLoader() *Loader {
	return &Loader{}
}

// AddPath appends a directory to the search list. Adding a path twice is a
// no-op.
func (l *Loader) AddPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.paths {
		if p == path {
			return
		}
	}
	l.paths = append(l.paths, path)
}

// RemovePath removes a directory from the search list.
func (l *Loader) RemovePath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.paths {
		if p == path {
			l.paths = append(l.paths[:i], l.paths[i+1:]...)
			return
		}
	}
}

// Paths returns the current search list.
func (l *Loader) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := make([]string, len(l.paths))
	copy(paths, l.paths)
	return paths
}

// FindFile returns the full path of the first file with the given name
// found in the search paths, or ErrFileNotFound.
func (l *Loader) FindFile(name string) (string, error) {
	for _, dir := range l.Paths() {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFileNotFound, name)
}

// Load locates name in the search paths and decodes it into a Config.
func (l *Loader) Load(name string) (*Config, error) {
	location, err := l.FindFile(name)
	if err != nil {
		return nil, err
	}
	return LoadFile(location)
}

// LoadFile decodes the file at path into a Config, choosing the decoder by
// extension: .yaml/.yml or .toml.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing toml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return cfg, nil
}
