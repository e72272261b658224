package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"whereabouts/internal/domain"
)

// probeLinePattern matches one line of tshark field output configured as
// "wlan.sa<TAB>wlan_radio.signal_dbm<TAB>wlan.ssid". Signal and SSID are
// both optional.
var probeLinePattern = regexp.MustCompile(`^([0-9a-fA-F:]{17})\t(-?\d+)?\t?(.*)$`)

// ProbeRequest is a captured WiFi probe request.
type ProbeRequest struct {
	MAC            string
	SignalStrength *int
	SSID           string
	Timestamp      time.Time
}

// ProbeLine parses one line of tshark probe-request output. It returns nil
// for blank or malformed lines; a line whose MAC field is not a 17-char
// colon-hex address is dropped entirely.
func ProbeLine(line string, now time.Time) *ProbeRequest {
	line = strings.TrimRight(strings.TrimSpace(line), "\t")
	if line == "" {
		return nil
	}

	m := probeLinePattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	mac, err := domain.CanonicalMAC(m[1])
	if err != nil {
		return nil
	}

	req := &ProbeRequest{
		MAC:       mac,
		SSID:      strings.TrimSpace(m[3]),
		Timestamp: now,
	}
	if m[2] != "" {
		if signal, err := strconv.Atoi(m[2]); err == nil {
			req.SignalStrength = &signal
		}
	}
	return req
}
