// Package config loads daemon settings from an optional YAML file
// overlaid with MANHOLE_* environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Settings configures the standalone daemon. YAML keys mirror the
// envconfig names.
type Settings struct {
	Addr       string   `yaml:"addr" envconfig:"ADDR" default:"127.0.0.1:9999"`
	SocketPath string   `yaml:"socket_path" envconfig:"SOCKET_PATH" default:""`
	Banner     string   `yaml:"banner" envconfig:"BANNER" default:""`
	Threaded   bool     `yaml:"threaded" envconfig:"THREADED" default:"false"`
	Timeout    Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"5s"`
	Shared     bool     `yaml:"shared" envconfig:"SHARED" default:"false"`
	ExitPolicy string   `yaml:"exit_policy" envconfig:"EXIT_POLICY" default:"session"`
}

// Load resolves settings in increasing precedence: struct defaults,
// then MANHOLE_* environment variables, then the YAML file (an
// explicitly passed --config wins over ambient environment). Empty
// file skips the last step.
func Load(file string) (Settings, error) {
	var cfg Settings
	if err := envconfig.Process("MANHOLE", &cfg); err != nil {
		return cfg, fmt.Errorf("load env config: %w", err)
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Settings) validate() error {
	switch c.ExitPolicy {
	case "session", "server":
	default:
		return fmt.Errorf("invalid exit_policy %q (want session or server)", c.ExitPolicy)
	}
	if c.Addr == "" && c.SocketPath == "" {
		return fmt.Errorf("at least one of addr or socket_path must be set")
	}
	return nil
}
