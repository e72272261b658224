package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Station   StationConfig   `yaml:"station"`
	Database  DatabaseConfig  `yaml:"database"`
	Detectors DetectorsConfig `yaml:"detectors"`
	Signal    SignalConfig    `yaml:"signal"`
	Vendor    VendorConfig    `yaml:"vendor"`
	Location  LocationConfig  `yaml:"location"`
	Reporting ReportingConfig `yaml:"reporting"`
}

// StationConfig identifies this monitoring station
type StationConfig struct {
	// Name labels this station's monitor row
	Name string `yaml:"name" env:"WHEREABOUTS_STATION_NAME"`
	// Latitude/Longitude pin the station when self-location is skipped
	Latitude  float64 `yaml:"latitude,omitempty" env:"WHEREABOUTS_STATION_LAT"`
	Longitude float64 `yaml:"longitude,omitempty" env:"WHEREABOUTS_STATION_LON"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path" env:"WHEREABOUTS_DB_PATH"`
}

// DetectorsConfig configures the detection sources
type DetectorsConfig struct {
	WiFi    WiFiDetectorConfig    `yaml:"wifi"`
	ARP     PollDetectorConfig    `yaml:"arp"`
	DHCP    DHCPDetectorConfig    `yaml:"dhcp"`
	NetScan NetScanDetectorConfig `yaml:"netscan"`
}

// WiFiDetectorConfig configures probe request capture
type WiFiDetectorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interface string `yaml:"interface" env:"WHEREABOUTS_WIFI_INTERFACE"`
}

// PollDetectorConfig configures a plain polling detector
type PollDetectorConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval,omitempty"`
}

// DHCPDetectorConfig configures the lease file poller
type DHCPDetectorConfig struct {
	Enabled   bool     `yaml:"enabled"`
	LeasePath string   `yaml:"lease_path,omitempty" env:"WHEREABOUTS_DHCP_LEASES"`
	Interval  Duration `yaml:"interval,omitempty"`
}

// NetScanDetectorConfig configures the active subnet sweep.
// Off unless explicitly enabled; active scanning is noisy.
type NetScanDetectorConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Targets  []string `yaml:"targets,omitempty"`
	Interval Duration `yaml:"interval,omitempty"`
}

// SignalConfig holds path-loss model parameters
type SignalConfig struct {
	// TxPower is the expected signal in dBm at one meter
	TxPower int `yaml:"tx_power"`
	// PathLossExponent models the environment (2 free space, 3-4 indoors)
	PathLossExponent float64 `yaml:"path_loss_exponent"`
}

// VendorConfig holds manufacturer lookup settings
type VendorConfig struct {
	// OUIPath points at a local IEEE OUI table, checked before any API
	OUIPath string `yaml:"oui_path,omitempty" env:"WHEREABOUTS_OUI_PATH"`
	// MacLookupAppKey enables the maclookup.app source
	MacLookupAppKey string `yaml:"maclookup_app_key,omitempty" env:"WHEREABOUTS_MACLOOKUP_KEY"`
	// MacAddressIOKey enables the macaddress.io source
	MacAddressIOKey string `yaml:"macaddress_io_key,omitempty" env:"WHEREABOUTS_MACADDRESS_KEY"`
}

// LocationConfig configures self-location on startup
type LocationConfig struct {
	// Skip disables the GPS/WiFi/IP ladder; station coordinates come
	// from StationConfig instead
	Skip bool `yaml:"skip,omitempty"`
	// GPSDevice pins the serial device instead of probing for one
	GPSDevice  string   `yaml:"gps_device,omitempty" env:"WHEREABOUTS_GPS_DEVICE"`
	GPSTimeout Duration `yaml:"gps_timeout,omitempty"`
	// GeolocationAPIKey enables the WiFi geolocation stage
	GeolocationAPIKey string `yaml:"geolocation_api_key,omitempty" env:"WHEREABOUTS_GEOLOCATION_KEY"`
}

// ReportingConfig configures the secondary-station reporter
type ReportingConfig struct {
	// PrimaryURL is the primary station's ingest endpoint; empty means
	// this station runs standalone or is itself the primary
	PrimaryURL string `yaml:"primary_url,omitempty" env:"WHEREABOUTS_PRIMARY_URL"`
	// APIKey authenticates this station to the primary
	APIKey   string   `yaml:"api_key,omitempty" env:"WHEREABOUTS_PRIMARY_API_KEY"`
	Interval Duration `yaml:"interval,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
