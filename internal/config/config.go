// Package config provides configuration management for whereabouts.
//
// Configuration comes from a YAML file with environment-variable
// overrides on top, so a station can be fully file-driven, fully
// env-driven, or a mix.
//
// Config file locations (priority order):
//  1. $WHEREABOUTS_CONFIG
//  2. ./whereabouts.yaml
//  3. ~/.config/whereabouts/config.yaml
//  4. /etc/whereabouts/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultARPInterval    = 30 * time.Second
	defaultDHCPInterval   = 60 * time.Second
	defaultScanInterval   = 5 * time.Minute
	defaultReportInterval = 30 * time.Second
	defaultGPSTimeout     = 15 * time.Second
)

// Load finds and loads the config file, or returns defaults if none
// found. Environment overrides apply either way.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		if err := env.Parse(cfg); err != nil {
			return nil, "", fmt.Errorf("parse environment: %w", err)
		}
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, path, fmt.Errorf("parse environment: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{
		Version:  1,
		Station:  StationConfig{Name: hostnameOr("whereabouts")},
		Database: DatabaseConfig{Path: "./whereabouts.db"},
		Detectors: DetectorsConfig{
			WiFi: WiFiDetectorConfig{Enabled: true},
			ARP:  PollDetectorConfig{Enabled: true},
			DHCP: DHCPDetectorConfig{Enabled: true},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Station.Name == "" {
		c.Station.Name = hostnameOr("whereabouts")
	}
	if c.Database.Path == "" {
		c.Database.Path = "./whereabouts.db"
	}
	if c.Detectors.ARP.Interval == 0 {
		c.Detectors.ARP.Interval = Duration(defaultARPInterval)
	}
	if c.Detectors.DHCP.Interval == 0 {
		c.Detectors.DHCP.Interval = Duration(defaultDHCPInterval)
	}
	if c.Detectors.NetScan.Interval == 0 {
		c.Detectors.NetScan.Interval = Duration(defaultScanInterval)
	}
	if c.Signal.TxPower == 0 {
		c.Signal.TxPower = -59
	}
	if c.Signal.PathLossExponent == 0 {
		c.Signal.PathLossExponent = 3.0
	}
	if c.Location.GPSTimeout == 0 {
		c.Location.GPSTimeout = Duration(defaultGPSTimeout)
	}
	if c.Reporting.Interval == 0 {
		c.Reporting.Interval = Duration(defaultReportInterval)
	}
}

// ReportsToPrimary returns true when this station should run the
// reporter loop.
func (c *Config) ReportsToPrimary() bool {
	return c.Reporting.PrimaryURL != "" && c.Reporting.APIKey != ""
}

func hostnameOr(fallback string) string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return fallback
}
