package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"whereabouts/internal/domain"
)

// DHCPLease is one device recorded by a DHCP server.
type DHCPLease struct {
	MAC       string
	IP        string
	Hostname  string
	Timestamp time.Time
}

var (
	iscLeaseBlockPattern = regexp.MustCompile(`lease\s+(\d+\.\d+\.\d+\.\d+)\s*\{([^}]+)\}`)
	iscHardwarePattern   = regexp.MustCompile(`hardware\s+ethernet\s+([0-9a-fA-F:]+)`)
	iscHostnamePattern   = regexp.MustCompile(`client-hostname\s+"([^"]+)"`)
	iscStartsPattern     = regexp.MustCompile(`starts\s+\d+\s+(\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2})`)
)

// DHCPLeases parses a lease file in either dnsmasq or ISC dhcpd format.
// The format is chosen by content sniffing: ISC files contain "lease "
// blocks with "hardware ethernet" declarations. now is used for entries
// without a usable timestamp.
func DHCPLeases(content string, now time.Time) []DHCPLease {
	if strings.Contains(content, "lease ") && strings.Contains(content, "hardware ethernet") {
		return iscLeases(content, now)
	}
	return dnsmasqLeases(content)
}

// dnsmasqLeases parses "epoch mac ip hostname client-id" rows. A hostname
// of "*" means the client reported none.
func dnsmasqLeases(content string) []DHCPLease {
	var leases []DHCPLease
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		epoch, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		mac, err := domain.CanonicalMAC(fields[1])
		if err != nil {
			continue
		}

		hostname := fields[3]
		if hostname == "*" {
			hostname = ""
		}

		leases = append(leases, DHCPLease{
			MAC:       mac,
			IP:        fields[2],
			Hostname:  hostname,
			Timestamp: time.Unix(epoch, 0).UTC(),
		})
	}
	return leases
}

func iscLeases(content string, now time.Time) []DHCPLease {
	var leases []DHCPLease
	for _, block := range iscLeaseBlockPattern.FindAllStringSubmatch(content, -1) {
		ip, body := block[1], block[2]

		hw := iscHardwarePattern.FindStringSubmatch(body)
		if hw == nil {
			continue
		}
		mac, err := domain.CanonicalMAC(hw[1])
		if err != nil {
			continue
		}

		lease := DHCPLease{MAC: mac, IP: ip, Timestamp: now}
		if hn := iscHostnamePattern.FindStringSubmatch(body); hn != nil {
			lease.Hostname = hn[1]
		}
		if st := iscStartsPattern.FindStringSubmatch(body); st != nil {
			if ts, err := time.Parse("2006/01/02 15:04:05", st[1]); err == nil {
				lease.Timestamp = ts
			}
		}
		leases = append(leases, lease)
	}
	return leases
}
