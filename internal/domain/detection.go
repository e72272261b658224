package domain

import "time"

// DetectionMethod identifies which subsystem observed a device.
type DetectionMethod string

const (
	// DetectProbe is a broadcast WiFi probe request captured in monitor mode.
	DetectProbe DetectionMethod = "probe"
	// DetectARP is an entry read from the kernel ARP table.
	DetectARP DetectionMethod = "arp"
	// DetectDHCP is a lease parsed from a DHCP server's lease file.
	DetectDHCP DetectionMethod = "dhcp"
	// DetectScan is a host found by an active network sweep.
	DetectScan DetectionMethod = "scan"
)

// DetectionEvent is one observation of a device by a detector. Events are
// ephemeral: produced per detector tick, consumed into the repository, then
// discarded.
type DetectionEvent struct {
	MAC            string
	SignalStrength *int // dBm, probe captures only
	SSID           string
	IP             string
	Hostname       string
	Method         DetectionMethod
	Timestamp      time.Time
}
