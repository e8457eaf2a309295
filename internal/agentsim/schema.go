// Package agentsim provides in-process simulated agents, driven by
// the same YAML schema files the mock-agent launcher uses. The deck
// develops and tests against these without hardware or a router.
package agentsim

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Schema files that live alongside agent definitions but are not
// agents themselves.
var excludedFiles = map[string]bool{
	"config.yaml":      true,
	"site-config.yaml": true,
}

// Schema describes one simulated agent.
type Schema struct {
	Name      string          `yaml:"name"`
	Class     string          `yaml:"class"`
	Tasks     []TaskSchema    `yaml:"tasks"`
	Processes []ProcessSchema `yaml:"processes"`
}

// TaskSchema describes a one-shot operation.
type TaskSchema struct {
	Name string `yaml:"name"`
	// Duration is the simulated run time in seconds.
	Duration float64        `yaml:"duration"`
	Params   map[string]any `yaml:"params"`
}

// ProcessSchema describes a long-running operation with a data feed.
type ProcessSchema struct {
	Name string `yaml:"name"`
	// Period is the feed sample period in seconds.
	Period float64        `yaml:"period"`
	Fields map[string]any `yaml:"fields"`
	// AutoStart processes begin running as soon as the hub starts.
	AutoStart bool `yaml:"auto_start"`
}

// LoadSchema parses one agent schema file.
func LoadSchema(path string) (Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("reading schema %s: %w", path, err)
	}
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Schema{}, fmt.Errorf("parsing schema %s: %w", path, err)
	}
	if s.Name == "" {
		return Schema{}, fmt.Errorf("schema %s: missing agent name", path)
	}
	for _, p := range s.Processes {
		if p.Period <= 0 {
			return Schema{}, fmt.Errorf("schema %s: process %s needs a period", path, p.Name)
		}
	}
	return s, nil
}

// DiscoverSchemas lists agent schema files in dir, sorted, skipping
// the known non-agent YAML files.
func DiscoverSchemas(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading agent dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" || excludedFiles[e.Name()] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir loads every agent schema in dir.
func LoadDir(dir string) ([]Schema, error) {
	paths, err := DiscoverSchemas(dir)
	if err != nil {
		return nil, err
	}
	schemas := make([]Schema, 0, len(paths))
	for _, p := range paths {
		s, err := LoadSchema(p)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}
