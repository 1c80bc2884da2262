// ============================================================================
// Configuration - YAML Config Loading
// ============================================================================
//
// Package: internal/config
// File: config.go
// Function: Loads the CLI's YAML configuration file: schedule location,
//           pool sizing, and metrics server settings.
//
// ============================================================================

// Package config loads the parallel CLI's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Schedule ScheduleConfig `yaml:"schedule"`
	Pool     PoolConfig     `yaml:"pool"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ScheduleConfig holds a default schedule document path. The `run` command
// does not read it; it loads the document named on its command line.
type ScheduleConfig struct {
	Path string `yaml:"path"`
}

// PoolConfig sizes the standalone thread pool a caller may construct
// alongside or instead of a schedule.
type PoolConfig struct {
	Workers int `yaml:"workers"`
}

// MetricsConfig controls the optional Prometheus HTTP server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns a Config populated with the same fallbacks the CLI
// applies when no config file is given.
func Default() Config {
	return Config{
		Pool: PoolConfig{Workers: 4},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// Load reads and parses the YAML config file at path, starting from
// Default so unset fields fall back to their defaults rather than to Go's
// zero values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
