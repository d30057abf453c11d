// Package config handles configuration for dash-runner.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
	"github.com/devicelab-dev/dash-runner/pkg/wait"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Bridge settings
	BridgeURL string `yaml:"bridgeUrl"` // Introspection bridge address

	// Wait budget for tree observations
	WaitTimeoutMs  int `yaml:"waitTimeoutMs"`  // 0 = wait.DefaultTimeout
	PollIntervalMs int `yaml:"pollIntervalMs"` // 0 = wait.DefaultInterval

	// Logging
	LogFile  string `yaml:"logFile"`  // Log file path (empty = report dir or stderr)
	LogLevel string `yaml:"logLevel"` // debug, info, warn or error

	// Flow selection
	Flows       []string `yaml:"flows"`       // Glob patterns for flows
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Execution settings
	Env          map[string]string `yaml:"env"`          // Environment variables
	DefaultScope string            `yaml:"defaultScope"` // Scope for steps that name none
	OutputDir    string            `yaml:"outputDir"`    // Report directory
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("parse %s: %v", path, err).WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// Validate rejects values no run can use.
func (c *Config) Validate() error {
	if c.WaitTimeoutMs < 0 {
		return core.ErrInvalidConfig.WithMessagef("waitTimeoutMs must not be negative, got %d", c.WaitTimeoutMs)
	}
	if c.PollIntervalMs < 0 {
		return core.ErrInvalidConfig.WithMessagef("pollIntervalMs must not be negative, got %d", c.PollIntervalMs)
	}
	if c.LogLevel != "" {
		if _, err := logger.ParseLevel(c.LogLevel); err != nil {
			return core.ErrInvalidConfig.WithMessagef("invalid logLevel %q", c.LogLevel).WithCause(err)
		}
	}
	return nil
}

// WaitOptions returns the configured wait budget. Unset values keep the
// wait package defaults.
func (c *Config) WaitOptions() wait.Options {
	return wait.Options{
		Timeout:  time.Duration(c.WaitTimeoutMs) * time.Millisecond,
		Interval: time.Duration(c.PollIntervalMs) * time.Millisecond,
	}.WithDefaults()
}

// ReportDir returns the configured report directory, or <home>/reports.
func (c *Config) ReportDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return GetReportsDir()
}
