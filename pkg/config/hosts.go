package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// ModuleRef pins a monitor or command to a version and carries its
// per-host/per-group settings, straight off the hosts/groups documents.
type ModuleRef struct {
	Version  string          `yaml:"version"`
	Settings module.Settings `yaml:"settings"`
}

// ConnectorRef carries a connector's per-host/per-group settings.
type ConnectorRef struct {
	Settings module.Settings `yaml:"settings"`
}

// HostEntry is one host as declared in the hosts document, before group
// fragments are merged in.
type HostEntry struct {
	Address    string                  `yaml:"address"`
	FQDN       string                  `yaml:"fqdn"`
	Settings   map[string]string       `yaml:"settings"`
	Groups     []string                `yaml:"groups"`
	Monitors   map[string]ModuleRef    `yaml:"monitors"`
	Commands   map[string]ModuleRef    `yaml:"commands"`
	Connectors map[string]ConnectorRef `yaml:"connectors"`
}

// HostsConfig is the hosts document: every host keyed by its id.
type HostsConfig struct {
	Hosts map[string]HostEntry `yaml:"hosts"`
}

// LoadHosts reads and parses the hosts configuration document at path.
func LoadHosts(path string) (*HostsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hosts config: %w", err)
	}

	var cfg HostsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse hosts config: %w", err)
	}

	return &cfg, nil
}
