package geolocate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
	"whereabouts/internal/parse"
)

const (
	gpsBaudRate    = 9600
	gpsFixTimeout  = 15 * time.Second
	gpsReadTimeout = time.Second
)

// gpsDevicePatterns are the device paths USB GPS dongles show up under.
var gpsDevicePatterns = []string{
	"/dev/ttyACM*",
	"/dev/ttyUSB*",
	"/dev/gps*",
}

// FindGPSDevices lists candidate GPS serial devices, sorted.
func FindGPSDevices() []string {
	var devices []string
	for _, pattern := range gpsDevicePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		devices = append(devices, matches...)
	}
	sort.Strings(devices)
	return devices
}

// GPSStage reads NMEA sentences from a serial GPS dongle until a valid
// fix arrives or the fix timeout passes.
type GPSStage struct {
	// DevicePath pins a specific device; empty auto-detects.
	DevicePath string
	// Timeout bounds the wait for a fix; zero uses the default.
	Timeout time.Duration

	// openPort is swapped in tests.
	openPort func(path string) (serial.Port, error)
}

// NewGPSStage creates the stage.
func NewGPSStage(devicePath string) *GPSStage {
	return &GPSStage{
		DevicePath: devicePath,
		Timeout:    gpsFixTimeout,
		openPort: func(path string) (serial.Port, error) {
			return serial.Open(path, &serial.Mode{BaudRate: gpsBaudRate})
		},
	}
}

func (s *GPSStage) Name() string { return "gps" }

// Locate waits for a GGA or RMC fix sentence. No dongle present is a
// quiet miss, not an error.
func (s *GPSStage) Locate(ctx context.Context) (*domain.GeoLocation, error) {
	path := s.DevicePath
	if path == "" {
		devices := FindGPSDevices()
		if len(devices) == 0 {
			return nil, nil
		}
		path = devices[0]
		log := logging.FromContext(ctx)
		log.Debug().Str("device", path).Msg("auto-detected gps device")
	}

	port, err := s.openPort(path)
	if err != nil {
		return nil, fmt.Errorf("open gps device %s: %w", path, err)
	}
	defer port.Close()

	// Short read timeout keeps the loop responsive to both deadlines.
	if err := port.SetReadTimeout(gpsReadTimeout); err != nil {
		return nil, fmt.Errorf("set gps read timeout: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = gpsFixTimeout
	}
	deadline := time.Now().Add(timeout)

	// A silent dongle yields endless zero-byte timeout reads; the
	// deadlines must be checked after every one of them.
	buf := make([]byte, 256)
	var pending []byte
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		n, err := port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Stream ended without a fix.
				return nil, nil
			}
			return nil, fmt.Errorf("read gps device %s: %w", path, err)
		}
		if n == 0 {
			// Read timeout with no data.
			continue
		}
		pending = append(pending, buf[:n]...)
		for {
			idx := bytes.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			line := strings.TrimRight(string(pending[:idx]), "\r")
			pending = pending[idx+1:]
			if loc := parse.NMEASentence(line); loc != nil {
				return loc, nil
			}
		}
	}

	// Dongle present but no satellite lock inside the window.
	return nil, nil
}
