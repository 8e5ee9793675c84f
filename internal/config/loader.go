package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the project document name searched for first.
const DefaultConfigFile = "oldmaps.yaml"

// configFileNames are tried in order in every search directory.
var configFileNames = []string{DefaultConfigFile, "oldmaps.yml", "oldmaps.json"}

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads a project document from a YAML or JSON file.
// JSON documents are accepted because JSON is a subset of YAML 1.2.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cf, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cf.dir = filepath.Dir(abs)
	return cf, nil
}

// ParseConfig decodes a project document. Relative map paths in the result
// are resolved against the working directory.
func ParseConfig(data []byte) (*File, error) {
	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	if cf.Anchors == nil {
		cf.Anchors = make(map[string][]float64)
	}
	return &cf, nil
}

// FindConfigFile searches for the project document in the following order:
// 1. If configPath is specified, use it directly
// 2. oldmaps.yaml, oldmaps.yml, oldmaps.json in the current directory
// 3. the same names in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	dirs = append(dirs, XDGConfigDir())

	for _, dir := range dirs {
		if path := findIn(dir); path != "" {
			return path
		}
	}
	return ""
}

func findIn(dir string) string {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
