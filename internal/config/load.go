package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file name looked up when no --config flag is given.
const DefaultConfigFile = "psforge.yaml"

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Field: path, Reason: fmt.Sprintf("cannot read config file: %v", err)}
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, &Error{Field: path, Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, &Error{Field: path, Reason: fmt.Sprintf("cannot decode config: %v", err)}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FindConfigFile returns the explicit path when given, otherwise the default
// config file in the working directory.
func FindConfigFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if _, err := os.Stat(DefaultConfigFile); err != nil {
		return "", &Error{Field: DefaultConfigFile, Reason: "not found (use --config or run from the project directory)"}
	}
	return DefaultConfigFile, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BuildInstanceType == "" {
		cfg.BuildInstanceType = "t3.medium"
	}
	if cfg.ServiceInstanceType == "" {
		cfg.ServiceInstanceType = "t3.medium"
	}
	if cfg.SSHUser == "" {
		cfg.SSHUser = "ubuntu"
	}
}
