package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/railyard/pkg/schema"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the actions file looked up in a rails directory.
const DefaultFile = "actions.yaml"

// ProcessConfig describes an action implemented by an external command.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout"`
	// Inputs are the session variables the command needs. Missing or
	// mistyped variables fail the action without running it.
	Inputs      schema.Schema     `yaml:"inputs" json:"inputs"`
}

// ConfigFile represents the structure of actions.yaml.
type ConfigFile struct {
	Actions []ProcessConfig `yaml:"actions" json:"actions"`
}

// LoadActions reads a YAML or JSON actions file and returns the actions by name.
// A missing file yields an empty map.
func LoadActions(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read actions config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	out := make(map[string]ProcessConfig, len(cfg.Actions))
	for _, a := range cfg.Actions {
		if a.Name == "" {
			continue
		}
		if a.Command == "" {
			return nil, fmt.Errorf("action %q has no command", a.Name)
		}
		if _, dup := out[a.Name]; dup {
			return nil, fmt.Errorf("action %q is defined twice", a.Name)
		}
		out[a.Name] = a
	}
	return out, nil
}
