package detector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
	"whereabouts/internal/parse"
)

// stopGrace is how long a capture subprocess gets between SIGTERM and
// SIGKILL on shutdown.
const stopGrace = 5 * time.Second

// captureArgs builds the tshark argument list for probe-request capture.
// Line-buffered field output keeps the stream parseable one line at a
// time.
func captureArgs(iface string) []string {
	return []string{
		"-i", iface,
		"-l",
		"-n",
		"-Y", "wlan.fc.type_subtype == 4",
		"-T", "fields",
		"-e", "wlan.sa",
		"-e", "wlan_radio.signal_dbm",
		"-e", "wlan.ssid",
		"-E", "separator=/t",
	}
}

// runCommand executes a short-lived setup command. Replaced in tests.
type runCommand func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w (%s)", name, args, err, string(out))
	}
	return nil
}

// WiFiDetector captures 802.11 probe requests with tshark on an
// interface in monitor mode.
type WiFiDetector struct {
	iface string
	run   runCommand
	now   func() time.Time
}

// NewWiFiDetector creates a probe-request capture detector for the
// given wireless interface.
func NewWiFiDetector(iface string) *WiFiDetector {
	return &WiFiDetector{
		iface: iface,
		run:   execRun,
		now:   time.Now,
	}
}

// Name returns the detector identifier
func (d *WiFiDetector) Name() string { return "wifi" }

// Method returns the detection method for capture events
func (d *WiFiDetector) Method() domain.DetectionMethod { return domain.DetectProbe }

// Start verifies tshark is installed and switches the interface into
// monitor mode.
func (d *WiFiDetector) Start(ctx context.Context) error {
	if d.iface == "" {
		return fmt.Errorf("no capture interface configured")
	}
	if _, err := exec.LookPath("tshark"); err != nil {
		return fmt.Errorf("tshark not found in PATH: %w", err)
	}
	return d.enableMonitorMode(ctx)
}

// Stop is a no-op; the capture subprocess dies with the stream context.
func (d *WiFiDetector) Stop() error { return nil }

// enableMonitorMode flips the interface to monitor mode, preferring
// ip/iw and falling back to iwconfig on older systems.
func (d *WiFiDetector) enableMonitorMode(ctx context.Context) error {
	_, ipErr := exec.LookPath("ip")
	_, iwErr := exec.LookPath("iw")
	if ipErr == nil && iwErr == nil {
		if err := d.run(ctx, "ip", "link", "set", d.iface, "down"); err != nil {
			return fmt.Errorf("failed to bring %s down: %w", d.iface, err)
		}
		if err := d.run(ctx, "iw", d.iface, "set", "monitor", "control"); err != nil {
			return fmt.Errorf("failed to set monitor mode on %s: %w", d.iface, err)
		}
		if err := d.run(ctx, "ip", "link", "set", d.iface, "up"); err != nil {
			return fmt.Errorf("failed to bring %s up: %w", d.iface, err)
		}
		return nil
	}

	if _, err := exec.LookPath("iwconfig"); err != nil {
		return fmt.Errorf("neither ip/iw nor iwconfig available for monitor mode")
	}
	if err := d.run(ctx, "iwconfig", d.iface, "mode", "monitor"); err != nil {
		return fmt.Errorf("failed to set monitor mode on %s: %w", d.iface, err)
	}
	return nil
}

// Stream runs tshark and emits one event per captured probe request. It
// returns when the context is cancelled or tshark exits.
func (d *WiFiDetector) Stream(ctx context.Context, emit func(domain.DetectionEvent)) error {
	cmd := exec.CommandContext(ctx, "tshark", captureArgs(d.iface)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = stopGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start tshark: %w", err)
	}

	d.consume(ctx, stdout, emit)

	err = cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("tshark exited: %w", err)
	}
	return nil
}

// consume reads capture output line by line until the stream ends.
func (d *WiFiDetector) consume(ctx context.Context, r io.Reader, emit func(domain.DetectionEvent)) {
	logger := logging.FromContext(ctx)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		req := parse.ProbeLine(line, d.now())
		if req == nil {
			if line != "" {
				logger.Debug().Str("detector", d.Name()).Str("line", line).Msg("dropping unparseable capture line")
			}
			continue
		}
		emit(domain.DetectionEvent{
			MAC:            req.MAC,
			SignalStrength: req.SignalStrength,
			SSID:           req.SSID,
			Method:         domain.DetectProbe,
			Timestamp:      req.Timestamp,
		})
	}
}
