package geolocate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
)

const (
	googleGeolocateURL = "https://www.googleapis.com/geolocation/v1/geolocate"

	// maxAccessPoints caps the scan payload; the geolocation API ignores
	// anything beyond roughly twenty entries.
	maxAccessPoints = 20

	wifiStageTimeout = 30 * time.Second
)

// AccessPoint is one scanned WiFi network.
type AccessPoint struct {
	BSSID          string
	SignalStrength int
	Channel        int
	SSID           string
}

// WiFiStage scans nearby access points and asks the Google Geolocation
// API to place the station among them.
type WiFiStage struct {
	APIKey    string
	Interface string

	baseURL string
	client  *http.Client
	// scan is swapped in tests.
	scan func(ctx context.Context, iface string) []AccessPoint
}

// NewWiFiStage creates the stage. An empty baseURL uses the public API.
func NewWiFiStage(apiKey, iface, baseURL string) *WiFiStage {
	if baseURL == "" {
		baseURL = googleGeolocateURL
	}
	return &WiFiStage{
		APIKey:    apiKey,
		Interface: iface,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: wifiStageTimeout},
		scan:      ScanAccessPoints,
	}
}

func (s *WiFiStage) Name() string { return "wifi" }

func (s *WiFiStage) Locate(ctx context.Context) (*domain.GeoLocation, error) {
	if s.APIKey == "" {
		return nil, nil
	}

	aps := s.scan(ctx, s.Interface)
	if len(aps) == 0 {
		return nil, nil
	}
	if len(aps) > maxAccessPoints {
		aps = aps[:maxAccessPoints]
	}

	type wifiAP struct {
		MacAddress     string `json:"macAddress"`
		SignalStrength int    `json:"signalStrength"`
		Channel        int    `json:"channel,omitempty"`
	}
	payload := struct {
		ConsiderIP       bool     `json:"considerIp"`
		WifiAccessPoints []wifiAP `json:"wifiAccessPoints"`
	}{ConsiderIP: true}
	for _, ap := range aps {
		payload.WifiAccessPoints = append(payload.WifiAccessPoints, wifiAP{
			MacAddress:     ap.BSSID,
			SignalStrength: ap.SignalStrength,
			Channel:        ap.Channel,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode geolocation request: %w", err)
	}

	url := s.baseURL + "?key=" + s.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation api status %d", resp.StatusCode)
	}

	var result struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		Accuracy float64 `json:"accuracy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode geolocation response: %w", err)
	}

	accuracy := result.Accuracy
	if accuracy == 0 {
		accuracy = 100
	}
	return &domain.GeoLocation{
		Latitude:  result.Location.Lat,
		Longitude: result.Location.Lng,
		Accuracy:  accuracy,
	}, nil
}

// ScanAccessPoints lists nearby WiFi networks, trying nmcli first (works
// unprivileged) and iw as the fallback.
func ScanAccessPoints(ctx context.Context, iface string) []AccessPoint {
	log := logging.FromContext(ctx)

	if aps := scanNmcli(ctx); len(aps) > 0 {
		log.Debug().Int("count", len(aps)).Msg("access points via nmcli")
		return aps
	}
	if aps := scanIw(ctx, iface); len(aps) > 0 {
		log.Debug().Int("count", len(aps)).Msg("access points via iw")
		return aps
	}
	return nil
}

func scanNmcli(ctx context.Context) []AccessPoint {
	out, err := exec.CommandContext(ctx,
		"nmcli", "-t", "-f", "BSSID,SIGNAL,CHAN,SSID", "device", "wifi", "list").Output()
	if err != nil {
		return nil
	}
	return parseNmcliOutput(string(out))
}

// parseNmcliOutput reads nmcli terse output. BSSID colons arrive escaped
// with backslashes, and signal is a 0-100 percentage.
func parseNmcliOutput(output string) []AccessPoint {
	var aps []AccessPoint
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := splitNmcliLine(line)
		if len(fields) < 3 {
			continue
		}
		bssid := strings.ToUpper(fields[0])
		if len(bssid) != 17 {
			continue
		}
		pct, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		ap := AccessPoint{
			BSSID: bssid,
			// Rough percentage-to-dBm mapping: 100% ~ -30 dBm, 0% ~ -90 dBm.
			SignalStrength: -90 + pct*6/10,
		}
		if ch, err := strconv.Atoi(fields[2]); err == nil {
			ap.Channel = ch
		}
		if len(fields) > 3 {
			ap.SSID = fields[3]
		}
		aps = append(aps, ap)
	}
	return aps
}

// splitNmcliLine splits a terse nmcli line on unescaped colons and drops
// the escaping backslashes.
func splitNmcliLine(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

var (
	iwBSSPattern    = regexp.MustCompile(`^BSS ([0-9a-fA-F:]{17})`)
	iwSignalPattern = regexp.MustCompile(`signal:\s*(-?\d+)`)
	iwSSIDPattern   = regexp.MustCompile(`SSID:\s*(.+)`)
)

func scanIw(ctx context.Context, iface string) []AccessPoint {
	out, err := exec.CommandContext(ctx, "iw", iface, "scan").Output()
	if err != nil {
		return nil
	}
	return parseIwOutput(string(out))
}

func parseIwOutput(output string) []AccessPoint {
	var aps []AccessPoint
	var cur *AccessPoint
	flush := func() {
		if cur != nil && cur.SignalStrength != 0 {
			aps = append(aps, *cur)
		}
		cur = nil
	}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if m := iwBSSPattern.FindStringSubmatch(line); m != nil {
			flush()
			cur = &AccessPoint{BSSID: strings.ToUpper(m[1])}
			continue
		}
		if cur == nil {
			continue
		}
		if m := iwSignalPattern.FindStringSubmatch(line); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				cur.SignalStrength = v
			}
		} else if m := iwSSIDPattern.FindStringSubmatch(line); m != nil {
			cur.SSID = m[1]
		}
	}
	flush()
	return aps
}
