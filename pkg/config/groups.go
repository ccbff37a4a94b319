package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Group is a named, reusable fragment of host configuration: settings and
// module references that get merged into every host listing this group.
type Group struct {
	Settings   map[string]string       `yaml:"settings"`
	Monitors   map[string]ModuleRef    `yaml:"monitors"`
	Commands   map[string]ModuleRef    `yaml:"commands"`
	Connectors map[string]ConnectorRef `yaml:"connectors"`
}

// GroupsConfig is the groups document: every group keyed by its name.
type GroupsConfig struct {
	Groups map[string]Group `yaml:"groups"`
}

// LoadGroups reads and parses the groups configuration document at path. A
// missing file is not an error: groups are optional, and hosts with no
// group references still resolve fine against an empty GroupsConfig.
func LoadGroups(path string) (*GroupsConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &GroupsConfig{Groups: map[string]Group{}}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read groups config: %w", err)
	}

	var cfg GroupsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse groups config: %w", err)
	}

	return &cfg, nil
}
