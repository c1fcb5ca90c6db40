// Package scenario loads and runs YAML and JSON request scenarios against a
// running Dispatch server.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a complete test scenario loaded from a YAML or JSON file.
type Scenario struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Setup       Setup  `yaml:"setup" json:"setup"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// Setup defines pre-test actions: resetting the server, loading a state
// snapshot and logging in.
type Setup struct {
	Reset bool   `yaml:"reset" json:"reset"`
	State string `yaml:"state" json:"state,omitempty"`
	Login *Login `yaml:"login" json:"login,omitempty"`
}

// Login holds the credentials exchanged for a token before the steps run.
type Login struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
}

// Step is a single request/assert pair within a scenario.
type Step struct {
	Name    string  `yaml:"name" json:"name"`
	Request Request `yaml:"request" json:"request"`
	Assert  Assert  `yaml:"assert" json:"assert"`
	// Capture stores top-level response keys as variables, e.g. {tag_id: id}.
	Capture map[string]string `yaml:"capture" json:"capture,omitempty"`
}

// Request defines the HTTP request to make during a step. Path is relative to
// the server URL.
type Request struct {
	Method  string            `yaml:"method" json:"method"`
	Path    string            `yaml:"path" json:"path"`
	Headers map[string]string `yaml:"headers" json:"headers"`
	Body    string            `yaml:"body" json:"body"`
}

// Assert defines the expected results of a step.
type Assert struct {
	Status       int               `yaml:"status" json:"status"`
	BodyContains string            `yaml:"body_contains" json:"body_contains"`
	BodyJSON     map[string]string `yaml:"body_json" json:"body_json,omitempty"`
	// Count checks the length of a list response's results.
	Count *int `yaml:"count" json:"count,omitempty"`
}

// LoadScenario parses a single YAML or JSON scenario file.
// The format is detected by file extension.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (expected .json, .yaml, or .yml)", ext)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	for i, step := range s.Steps {
		if step.Request.Path == "" {
			return nil, fmt.Errorf("scenario %s: step %d has no request path", path, i+1)
		}
	}

	return &s, nil
}

// Load loads path as a single scenario, or every scenario in it when path is
// a directory.
func Load(path string) ([]*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		return []*Scenario{s}, nil
	}
	return LoadDir(path)
}

// LoadDir loads all .yaml, .yml, and .json scenario files from a directory.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var scenarios []*Scenario
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}

	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}

	return scenarios, nil
}
