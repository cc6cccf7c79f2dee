// Package config loads the optional user configuration file. Flags and
// environment variables always win over file values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the user configuration file contents.
type Config struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token"`
}

// Load reads the configuration file at path. A missing file is not an error,
// it returns an empty config so the caller falls through to its defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %q: %w", path, err)
	}

	return cfg, nil
}
