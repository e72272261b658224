package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Station.Name == "" {
		t.Error("Station.Name should not be empty")
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should not be empty")
	}

	// Passive detectors on, active scanning off
	if !cfg.Detectors.WiFi.Enabled || !cfg.Detectors.ARP.Enabled || !cfg.Detectors.DHCP.Enabled {
		t.Error("passive detectors should be enabled by default")
	}
	if cfg.Detectors.NetScan.Enabled {
		t.Error("netscan should be disabled by default")
	}

	if cfg.Signal.TxPower != -59 {
		t.Errorf("Signal.TxPower = %d, want -59", cfg.Signal.TxPower)
	}
	if cfg.Signal.PathLossExponent != 3.0 {
		t.Errorf("Signal.PathLossExponent = %v, want 3.0", cfg.Signal.PathLossExponent)
	}
	if cfg.Detectors.ARP.Interval.Duration() != 30*time.Second {
		t.Errorf("ARP interval = %s, want 30s", cfg.Detectors.ARP.Interval.Duration())
	}
	if cfg.Location.GPSTimeout.Duration() != 15*time.Second {
		t.Errorf("GPS timeout = %s, want 15s", cfg.Location.GPSTimeout.Duration())
	}
}

func TestReportsToPrimary(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ReportsToPrimary() {
		t.Error("standalone station should not report")
	}

	cfg.Reporting.PrimaryURL = "http://primary:8000/api/monitors/report"
	if cfg.ReportsToPrimary() {
		t.Error("URL without key should not report")
	}

	cfg.Reporting.APIKey = "secret"
	if !cfg.ReportsToPrimary() {
		t.Error("URL plus key should report")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Station.Name = "garage"
	cfg.Detectors.WiFi.Interface = "wlan1"
	cfg.Detectors.NetScan.Enabled = true
	cfg.Detectors.NetScan.Targets = []string{"192.168.1.0/24"}
	cfg.Detectors.ARP.Interval = Duration(10 * time.Second)

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}

	if loaded.Station.Name != "garage" {
		t.Errorf("Station.Name = %q", loaded.Station.Name)
	}
	if loaded.Detectors.WiFi.Interface != "wlan1" {
		t.Errorf("WiFi.Interface = %q", loaded.Detectors.WiFi.Interface)
	}
	if !loaded.Detectors.NetScan.Enabled {
		t.Error("NetScan.Enabled lost on round trip")
	}
	if len(loaded.Detectors.NetScan.Targets) != 1 || loaded.Detectors.NetScan.Targets[0] != "192.168.1.0/24" {
		t.Errorf("NetScan.Targets = %v", loaded.Detectors.NetScan.Targets)
	}
	if loaded.Detectors.ARP.Interval.Duration() != 10*time.Second {
		t.Errorf("ARP interval = %s, want 10s", loaded.Detectors.ARP.Interval.Duration())
	}

	// Defaults fill fields the file left out.
	if loaded.Signal.TxPower != -59 {
		t.Errorf("Signal.TxPower = %d, want -59 default", loaded.Signal.TxPower)
	}
	if loaded.Detectors.DHCP.Interval.Duration() != 60*time.Second {
		t.Errorf("DHCP interval = %s, want 60s default", loaded.Detectors.DHCP.Interval.Duration())
	}
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Detectors.WiFi.Interface = "wlan0"
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Setenv("WHEREABOUTS_WIFI_INTERFACE", "wlan1")
	t.Setenv("WHEREABOUTS_STATION_NAME", "attic")

	loaded, _, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if loaded.Detectors.WiFi.Interface != "wlan1" {
		t.Errorf("WiFi.Interface = %q, want env override wlan1", loaded.Detectors.WiFi.Interface)
	}
	if loaded.Station.Name != "attic" {
		t.Errorf("Station.Name = %q, want env override attic", loaded.Station.Name)
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	found := FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	// Explicit path doesn't exist, should fall back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	found = FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
