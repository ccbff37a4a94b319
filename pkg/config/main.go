// Package config loads the three on-disk configuration documents (main,
// hosts, groups) the core consumes at startup. Parsing their on-disk layout
// is explicitly in scope only insofar as it feeds the core's data model;
// the core never re-derives or watches these files after startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryMeta carries the UI's display hints for one monitor category.
type CategoryMeta struct {
	DisplayName string `yaml:"display_name"`
	Icon        string `yaml:"icon"`
}

// Display groups the ordering/metadata hints the UI uses to lay out
// categories and monitors; the core only carries these through, it has no
// opinion on layout itself.
type Display struct {
	CategoryOrder []string                `yaml:"category_order"`
	MonitorOrder  []string                `yaml:"monitor_order"`
	Categories    map[string]CategoryMeta `yaml:"categories"`
}

// Sidecar configures the optional external metrics process. BinaryPath
// empty means the sidecar is disabled entirely; charting then stays off
// regardless of ShowCharts.
type Sidecar struct {
	BinaryPath string `yaml:"binary_path"`
	SocketPath string `yaml:"socket_path"`
	CACertPath string `yaml:"ca_cert_path"`
}

// Config is the main configuration document: process-wide preferences that
// apply regardless of which host or module is in play.
type Config struct {
	Terminal          string   `yaml:"terminal"`
	TerminalArgs      []string `yaml:"terminal_args"`
	TextEditor        string   `yaml:"text_editor"`
	RemoteTextEditor  string   `yaml:"remote_text_editor"`
	UseRemoteEditor   bool     `yaml:"use_remote_editor"`
	SudoRemoteEditor  bool     `yaml:"sudo_remote_editor"`
	ShowCharts        bool     `yaml:"show_charts"`
	DefaultHostStatus string   `yaml:"default_host_status"`
	Display           Display  `yaml:"display"`
	Sidecar           Sidecar  `yaml:"sidecar"`
}

// Default returns a Config with the same preferences a fresh install would
// ship: a local editor, no charts (the sidecar is optional), hosts assumed
// up until proven otherwise.
func Default() *Config {
	return &Config{
		Terminal:          "xterm",
		TextEditor:        "vi",
		ShowCharts:        false,
		DefaultHostStatus: "up",
	}
}

func (c *Config) setDefaults() {
	if c.Terminal == "" {
		c.Terminal = "xterm"
	}

	if c.TextEditor == "" {
		c.TextEditor = "vi"
	}

	if c.DefaultHostStatus == "" {
		c.DefaultHostStatus = "up"
	}
}

// Load reads the main configuration document at path and fills in defaults
// for unset fields; it performs no other validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read main config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse main config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}
